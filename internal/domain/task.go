package domain

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"
)

const DateLayout = "2006-01-02"

// Output is what every task run returns.
type Output struct {
	URI         string `json:"uri"`
	CurrentDate string `json:"currentDate"`
}

func NewOutput(uri string, now time.Time) Output {
	return Output{URI: uri, CurrentDate: now.UTC().Format(DateLayout)}
}

// RunContext is the host collaborator handed to a running task, scoped to one namespace.
type RunContext interface {
	RunID() string
	Namespace() string
	Logger() *slog.Logger
	Now() time.Time

	Render(template string) (string, error)
	ReadBlob(ctx context.Context, uri string) ([]byte, error)
	WriteBlob(ctx context.Context, name string, data []byte) (uri string, err error)

	GetKV(ctx context.Context, key string) (value string, found bool, err error)
	PutKV(ctx context.Context, key, value string) error
	Tokens() TokenStore
}

// Task is one provider orchestration. Properties are decoded into the task before Validate.
type Task interface {
	Type() string
	Validate() error
	Run(ctx context.Context, rc RunContext) (Output, error)
}

// TaskFactory returns a fresh task with its dependencies wired and properties at their defaults.
type TaskFactory func() Task

// RenderInto renders every field template in place, in key order, and stops at the first failure.
func RenderInto(rc RunContext, fields map[string]*string) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		ptr := fields[name]
		rendered, err := rc.Render(*ptr)
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		*ptr = rendered
	}
	return nil
}
