// Package sentiment turns free LLM text into typed sentiment records and runs the sentiment.Analyze task.
//
// Models are asked for raw JSON but routinely wrap it in prose or return it escaped inside a string.
// Extract locates the first bracketed span, un-escapes it, and falls back to a balanced-bracket scan
// when the shortest span is not the array (stray "[1]" in a preamble, nested arrays).
package sentiment
