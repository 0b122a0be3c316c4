// Package files содержит безопасные обертки чтения файлов и дозаписи журналов.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dvbondoy/aitomate/internal/core"
)

// DefaultReadLimit ограничивает объем читаемого содержимого.
const DefaultReadLimit = 1 << 20

const (
	CodeFileNotFound     = "file_not_found"
	CodePermissionDenied = "permission_denied"
	CodeIsDirectory      = "is_directory"
	CodeReadFailed       = "read_failed"
	CodeWriteFailed      = "write_failed"
)

// FileContent содержит прочитанный файл.
type FileContent struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated,omitempty"`
}

// AppendResult описывает итог дозаписи строки.
type AppendResult struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// ReadFile читает текстовый файл целиком, но не больше limit байт (при limit <= 0 используется DefaultReadLimit).
func ReadFile(path string, limit int64) core.Result[FileContent] {
	if strings.TrimSpace(path) == "" {
		return core.Fail[FileContent](core.CodeInvalidArgument, "path is required")
	}
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	f, err := os.Open(path) // #nosec G304 -- путь задает оператор после подтверждения.
	if err != nil {
		return readFailure(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return readFailure(err)
	}
	if info.IsDir() {
		return core.Fail[FileContent](CodeIsDirectory, fmt.Sprintf("%s is a directory", path))
	}

	buf, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return readFailure(err)
	}
	out := FileContent{Path: path, Size: info.Size()}
	if int64(len(buf)) > limit {
		buf = cutRuneBoundary(buf[:limit])
		out.Truncated = true
	}
	out.Content = string(buf)
	return core.OK(out)
}

// cutRuneBoundary убирает хвост, если лимит разрезал UTF-8 символ.
func cutRuneBoundary(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			return b
		}
	}
	return b
}

func readFailure(err error) core.Result[FileContent] {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return core.Fail[FileContent](CodeFileNotFound, "file not found")
	case errors.Is(err, fs.ErrPermission):
		return core.Fail[FileContent](CodePermissionDenied, err.Error())
	default:
		return core.Fail[FileContent](CodeReadFailed, err.Error())
	}
}

// AppendLog дописывает строку text в конец файла, создавая файл и каталоги при необходимости.
func AppendLog(path, text string) core.Result[AppendResult] {
	if strings.TrimSpace(path) == "" {
		return core.Fail[AppendResult](core.CodeInvalidArgument, "path is required")
	}
	n, err := appendLine(path, text)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return core.Fail[AppendResult](CodePermissionDenied, err.Error())
		}
		return core.Fail[AppendResult](CodeWriteFailed, err.Error())
	}
	return core.OK(AppendResult{Path: path, Bytes: n})
}

func appendLine(path, text string) (n int, err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 -- путь задает оператор.
	if err != nil {
		return 0, fmt.Errorf("open log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close log: %w", cerr))
		}
	}()

	if n, err = f.WriteString(text + "\n"); err != nil {
		return n, fmt.Errorf("write log: %w", err)
	}
	if err = f.Sync(); err != nil {
		return n, fmt.Errorf("sync log: %w", err)
	}
	return n, nil
}

// Module публикует файловые операции в реестре под именем "files".
type Module struct {
	ReadLimit int64
}

func (m *Module) Name() string { return "files" }

func (m *Module) Commands() []string { return []string{"read", "append"} }

func (m *Module) Init(context.Context) error { return nil }

func (m *Module) Execute(ctx context.Context, cmd string, args core.Args) (core.Response, error) {
	switch cmd {
	case "read":
		return ReadFile(args.String("path"), m.ReadLimit).Response(), nil
	case "append":
		return AppendLog(args.String("path"), args.String("text")).Response(), nil
	default:
		return core.UnknownCommand(m.Name(), cmd)
	}
}
