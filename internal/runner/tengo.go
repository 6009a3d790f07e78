package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"go.uber.org/zap"
)

// TengoExecutor runs tengo scripts from a directory. A script reports back by
// assigning the globals apicalls and message.
type TengoExecutor struct {
	dir    string
	logger *zap.Logger
}

func NewTengoExecutor(dir string, logger *zap.Logger) *TengoExecutor {
	return &TengoExecutor{dir: dir, logger: logger.Named("tengo")}
}

func (e *TengoExecutor) Run(ctx context.Context, file string, task Task) (Result, error) {
	path, err := resolve(e.dir, file)
	if err != nil {
		return Result{}, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read script: %w", err)
	}

	script := tengo.NewScript(src)
	script.SetImports(stdlib.GetModuleMap("fmt", "math", "strings", "text", "times", "json"))

	meta := make(map[string]interface{}, len(task.Metadata))
	for k, v := range task.Metadata {
		meta[k] = v
	}
	vars := map[string]interface{}{
		"config":   task.Config,
		"script":   task.Script.Name,
		"metadata": meta,
		"apicalls": -1,
		"message":  "",
	}
	for name, v := range vars {
		if err := script.Add(name, v); err != nil {
			return Result{}, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}
	logger := e.logger.With(zap.String("config", task.Config), zap.String("script", task.Script.Name))
	err = script.Add("log", &tengo.UserFunction{
		Name: "log",
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			parts := make([]string, 0, len(args))
			for _, arg := range args {
				s, _ := tengo.ToString(arg)
				parts = append(parts, s)
			}
			logger.Info(strings.Join(parts, " "))
			return tengo.UndefinedValue, nil
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to bind log: %w", err)
	}

	compiled, err := script.Compile()
	if err != nil {
		return Result{}, fmt.Errorf("failed to compile script: %w", err)
	}
	if err := compiled.RunContext(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to run script: %w", err)
	}

	res := Result{Message: compiled.Get("message").String()}
	if n := compiled.Get("apicalls").Int(); n >= 0 {
		res.APICalls = &n
	}
	return res, nil
}

// resolve joins file onto dir and refuses paths that leave dir.
func resolve(dir, file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("script file is required")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, filepath.Clean("/"+file))
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("script %q is outside %s", file, dir)
	}
	return path, nil
}
