package nodecfg

import (
	"os"
	"strings"
	"sync"

	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

// Writer appends node blocks and script directives to the cluster's
// configuration files. Appends are serialized; existing content is never
// rewritten.
type Writer struct {
	mu           sync.Mutex
	nodeCfgPath  string
	loadFilePath string
	scriptPrefix string
	logger       *logging.Logger
}

func NewWriter(nodeCfgPath, loadFilePath, scriptPrefix string) *Writer {
	return &Writer{
		nodeCfgPath:  nodeCfgPath,
		loadFilePath: loadFilePath,
		scriptPrefix: scriptPrefix,
		logger:       logging.NewLogger("nodecfg"),
	}
}

func (w *Writer) AppendNode(d types.DeviceDescriptor) error {
	if d.Name() == "" {
		return errors.ErrInvalidDevice("descriptor is empty")
	}
	if err := w.appendTo(w.nodeCfgPath, Format(d)); err != nil {
		return err
	}
	w.logger.Info("node appended",
		logging.Field{Key: "name", Value: d.Name()},
		logging.Field{Key: "role", Value: string(d.Role())},
		logging.Field{Key: "path", Value: w.nodeCfgPath})
	return nil
}

// AppendScript adds a load directive for script, a path relative to the
// script prefix.
func (w *Writer) AppendScript(script string) error {
	script = strings.TrimSpace(script)
	if script == "" || strings.ContainsAny(script, " \t\r\n") {
		return errors.ErrInvalidScript("script name must be non-empty and contain no whitespace")
	}
	if err := w.appendTo(w.loadFilePath, FormatLoad(w.scriptPrefix, script)); err != nil {
		return err
	}
	w.logger.Info("script load appended",
		logging.Field{Key: "script", Value: w.scriptPrefix + script},
		logging.Field{Key: "path", Value: w.loadFilePath})
	return nil
}

func (w *Writer) appendTo(path, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.ErrConfigWriteFailed(path, err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return errors.ErrConfigWriteFailed(path, err)
	}
	if err := f.Close(); err != nil {
		return errors.ErrConfigWriteFailed(path, err)
	}
	return nil
}
