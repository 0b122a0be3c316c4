package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	errProviderExists   = errors.New("provider already registered")
	errUnknownProvider  = errors.New("unknown provider")
	errInvalidArguments = errors.New("invalid arguments")
)

// Registry хранит зарегистрированные модули и выполняет команды.
type Registry struct {
	providers map[string]CommandProvider
}

// NewRegistry создает пустой реестр модулей.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]CommandProvider)}
}

// Register добавляет модуль; имя должно быть уникальным.
func (r *Registry) Register(ctx context.Context, provider CommandProvider) error {
	if provider == nil {
		return fmt.Errorf("provider is nil: %w", errInvalidArguments)
	}
	name := provider.Name()
	if name == "" {
		return fmt.Errorf("provider name is empty: %w", errInvalidArguments)
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%s: %w", name, errProviderExists)
	}
	if err := provider.Init(ctx); err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}
	r.providers[name] = provider
	return nil
}

// Execute вызывает модуль по имени.
func (r *Registry) Execute(ctx context.Context, module, cmd string, args Args) (Response, error) {
	prov, ok := r.providers[module]
	if !ok {
		return Response{Status: StatusError, ErrorCode: "module_not_found"}, fmt.Errorf("%s: %w", module, errUnknownProvider)
	}
	if args == nil {
		args = Args{}
	}
	return prov.Execute(ctx, cmd, args)
}

// Providers возвращает отсортированный список зарегистрированных модулей.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands возвращает команды модуля.
func (r *Registry) Commands(module string) ([]string, error) {
	prov, ok := r.providers[module]
	if !ok {
		return nil, fmt.Errorf("%s: %w", module, errUnknownProvider)
	}
	return prov.Commands(), nil
}

// UnknownCommand строит стандартный ответ модуля на неподдерживаемую команду.
func UnknownCommand(module, cmd string) (Response, error) {
	return Response{Status: StatusError, ErrorCode: CodeUnknownCommand, Error: fmt.Sprintf("command %s not supported", cmd)},
		fmt.Errorf("%s: command %s not supported", module, cmd)
}

// BadArguments строит стандартный ответ модуля на ошибку разбора аргументов.
func BadArguments(err error) (Response, error) {
	return Response{Status: StatusError, ErrorCode: CodeInvalidArgument, Error: err.Error()}, err
}
