// Package template renders task properties with text/template and the sprig function library.
//
// Templates see .inputs, .namespace, .execution.id and .execution.date, plus a kv function that
// reads the run namespace: {{ kv "twitter_access_token" }}. Unknown map keys are errors.
package template

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/pscheid92/hashpulse/internal/domain"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

// KVReader is the read side of domain.KVStore.
type KVReader interface {
	Get(ctx context.Context, namespace, key string) (value string, found bool, err error)
}

// Scope is what one run's templates can see.
type Scope struct {
	Namespace string
	RunID     string
	Date      time.Time
	Inputs    map[string]any
	KV        KVReader
}

type Renderer struct {
	funcs template.FuncMap
}

func NewRenderer() *Renderer {
	return &Renderer{funcs: sprig.TxtFuncMap()}
}

// Render evaluates tmpl against scope. Strings without "{{" are returned unchanged.
func (r *Renderer) Render(ctx context.Context, tmpl string, scope Scope) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("property").
		Option("missingkey=error").
		Funcs(r.funcs).
		Funcs(template.FuncMap{"kv": kvFunc(ctx, scope)}).
		Parse(tmpl)
	if err != nil {
		return "", apperrors.ValidationError(fmt.Sprintf("invalid template %q: %v", tmpl, err))
	}

	var out strings.Builder
	if err := t.Execute(&out, data(scope)); err != nil {
		return "", apperrors.ValidationError(fmt.Sprintf("render template %q: %v", tmpl, err))
	}
	return out.String(), nil
}

func data(scope Scope) map[string]any {
	inputs := scope.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	return map[string]any{
		"inputs":    inputs,
		"namespace": scope.Namespace,
		"execution": map[string]any{
			"id":   scope.RunID,
			"date": scope.Date.UTC().Format(domain.DateLayout),
		},
	}
}

// kvFunc renders a missing key as "".
func kvFunc(ctx context.Context, scope Scope) func(string) (string, error) {
	return func(key string) (string, error) {
		if scope.KV == nil {
			return "", nil
		}
		value, _, err := scope.KV.Get(ctx, scope.Namespace, key)
		if err != nil {
			return "", fmt.Errorf("kv %q: %w", key, err)
		}
		return value, nil
	}
}
