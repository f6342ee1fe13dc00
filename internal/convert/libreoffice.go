package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
)

const defaultConvertTimeout = 2 * time.Minute

// LibreOffice converts with a headless soffice binary.
type LibreOffice struct {
	command []string
	timeout time.Duration
}

// NewLibreOffice parses command ("soffice --headless") with shell quoting rules.
func NewLibreOffice(command string, timeout time.Duration) (*LibreOffice, error) {
	parts, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse converter command: %w", err)
	}
	if len(parts) == 0 {
		return nil, errors.New("converter command is empty")
	}
	if timeout <= 0 {
		timeout = defaultConvertTimeout
	}
	return &LibreOffice{command: parts, timeout: timeout}, nil
}

// Args builds the full argument list for converting inputPath into outDir.
func (l *LibreOffice) Args(d Direction, inputPath, outDir string) []string {
	args := append([]string{}, l.command[1:]...)
	if d == PDFToDOCX {
		args = append(args, "--infilter=writer_pdf_import", "--convert-to", `docx:MS Word 2007 XML`)
	} else {
		args = append(args, "--convert-to", "pdf")
	}
	return append(args, "--outdir", outDir, inputPath)
}

func (l *LibreOffice) Convert(ctx context.Context, d Direction, inputPath, outDir string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, l.command[0], l.Args(d, inputPath, outDir)...)
	// A private profile directory lets conversions run in parallel.
	cmd.Env = append(os.Environ(), "HOME="+filepath.Dir(outDir))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w - %s", filepath.Base(l.command[0]), err, strings.TrimSpace(stderr.String()))
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	output := filepath.Join(outDir, stem+d.OutputExt())
	if _, err := os.Stat(output); err != nil {
		return "", fmt.Errorf("converter produced no output: %s", strings.TrimSpace(stderr.String()))
	}
	return output, nil
}
