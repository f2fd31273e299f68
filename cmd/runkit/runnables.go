package main

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/kbukum/runkit/runnable"
)

var (
	normalize = runnable.Func("normalize", func(_ context.Context, s string) (string, error) {
		return strings.Join(strings.Fields(strings.ToLower(s)), " "), nil
	})
	wordCount = runnable.Func("word_count", func(_ context.Context, s string) (int, error) {
		return len(strings.Fields(s)), nil
	})
	charCount = runnable.Func("char_count", func(_ context.Context, s string) (int, error) {
		return utf8.RuneCountInString(s), nil
	})
	shout = runnable.Func("shout", func(_ context.Context, s string) (string, error) {
		return strings.ToUpper(s) + "!", nil
	})
)

// words streams its input one word at a time, the way a model streams tokens.
var words = runnable.NewGenerator("words", func(_ context.Context, input any, _ runnable.Config) (runnable.Iterator, error) {
	s, _ := input.(string)
	fields := strings.Fields(s)
	chunks := make([]any, len(fields))
	for i, w := range fields {
		if i > 0 {
			w = " " + w
		}
		chunks[i] = w
	}
	return runnable.FromSlice(chunks...), nil
}).WithKind(runnable.KindLLM)

// demoRunnables returns the runnables served by the binary, keyed by path.
func demoRunnables() map[string]runnable.Runnable {
	analyze := runnable.NewSequence(
		normalize,
		runnable.NewParallel(
			runnable.Step{Key: "words", Runnable: wordCount},
			runnable.Step{Key: "chars", Runnable: charCount},
			runnable.Step{Key: "shout", Runnable: shout},
		).WithName("stats"),
	).WithName("analyze")

	isList := func(input any) bool {
		_, ok := input.([]any)
		return ok
	}
	clean := runnable.NewBranch(normalize,
		runnable.When(isList, runnable.NewEach(normalize)),
	).WithName("clean")

	return map[string]runnable.Runnable{
		"analyze": analyze,
		"clean":   clean,
		"echo":    runnable.Pipe(normalize, words).WithName("echo"),
	}
}
