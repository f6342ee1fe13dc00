// Command client is the terminal front end of the PDF assistant.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"pdf-assistant/internal/app"
	"pdf-assistant/internal/client"
	"pdf-assistant/internal/config"
	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/convert"
	"pdf-assistant/internal/generate"
	"pdf-assistant/internal/logger"
)

// errReported marks a failure that has already been printed.
var errReported = errors.New("request failed")

func main() {
	if err := app.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCommand(config.LoadClient(), os.Stdout, os.Stderr)
	if err := cmd.Run(ctx, os.Args); err != nil {
		if !errors.Is(err, errReported) {
			client.RenderError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newCommand(cfg config.ClientConfig, stdout, stderr io.Writer) *cli.Command {
	documentFlags := []cli.Flag{
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "PDF file to upload"},
		&cli.StringFlag{Name: "model", Usage: "model name (" + strings.Join(contract.Models, ", ") + ")"},
		&cli.FloatFlag{Name: "temperature", Usage: "sampling temperature, 0.0 to 1.0"},
		&cli.BoolFlag{Name: "allow-non-english", Usage: "answer in the document's language"},
		&cli.IntFlag{Name: "start-page", Usage: "first page to read"},
		&cli.IntFlag{Name: "end-page", Usage: "last page to read"},
	}

	return &cli.Command{
		Name:  "pdf-assistant",
		Usage: "Summarize, question, translate and convert PDF documents",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend-url", Value: cfg.BackendURL, Usage: "API base URL"},
			&cli.StringFlag{Name: "api-key", Value: cfg.APIKey, Usage: "value for the x-api-key header"},
			&cli.StringFlag{Name: "access-code", Value: cfg.AccessCode, Usage: "access code for gated servers"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log requests to stderr"},
		},
		Commands: []*cli.Command{
			{
				Name:  "summarize",
				Usage: "Summarize a document",
				Flags: documentFlags,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runDocument(ctx, cmd, cfg, stdout, stderr, client.ModeSummarize)
				},
			},
			{
				Name:  "ask",
				Usage: "Ask a question about a document",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Usage: "question to ask"},
				}, documentFlags...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runDocument(ctx, cmd, cfg, stdout, stderr, client.ModeAsk)
				},
			},
			{
				Name:  "translate",
				Usage: "Translate a page range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "PDF file to upload", Required: true},
					&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Usage: "target language (BCP 47, e.g. fr, pt-BR)", Required: true},
					&cli.IntFlag{Name: "start-page", Usage: "first page to translate"},
					&cli.IntFlag{Name: "end-page", Usage: "last page to translate"},
					&cli.StringFlag{Name: "format", Value: "json", Usage: "json, txt or columns"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the txt/columns download here"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runTranslate(ctx, cmd, cfg, stdout, stderr)
				},
			},
			{
				Name:  "convert",
				Usage: "Convert between PDF and DOCX",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "file to convert", Required: true},
					&cli.StringFlag{Name: "direction", Aliases: []string{"d"}, Value: string(convert.PDFToDOCX), Usage: "pdf2docx or docx2pdf"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output path (default: server-provided name)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runConvert(ctx, cmd, cfg, stdout, stderr)
				},
			},
			{
				Name:  "generate",
				Usage: "Generate text from a prompt",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "prompt text", Required: true},
					&cli.StringFlag{Name: "task", Value: string(generate.TaskGeneral), Usage: "general, summary, email, blog, code or translation"},
					&cli.StringFlag{Name: "model", Usage: "model name"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "also write the result to this file"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runGenerate(ctx, cmd, cfg, stdout, stderr)
				},
			},
			{
				Name:  "session",
				Usage: "Show the session state",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runSession(ctx, cmd, cfg, stdout, stderr)
				},
			},
		},
	}
}

func newClient(cmd *cli.Command, cfg config.ClientConfig, stderr io.Writer) (*client.Client, error) {
	level := "warn"
	if cmd.Bool("verbose") {
		level = "debug"
	}
	return client.New(client.Config{
		BaseURL:     cmd.String("backend-url"),
		APIKey:      cmd.String("api-key"),
		AccessCode:  cmd.String("access-code"),
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
		RetryBase:   cfg.RetryBase,
		Log:         logger.NewText(stderr, level),
	})
}

func readDocument(path string) (*contract.UploadedDocument, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &contract.UploadedDocument{Filename: filepath.Base(path), Content: content}, nil
}

func documentOptions(cmd *cli.Command) contract.Options {
	opts := contract.Options{
		ModelName: cmd.String("model"),
		StartPage: cmd.Int("start-page"),
		EndPage:   cmd.Int("end-page"),
	}
	if cmd.IsSet("temperature") {
		opts.Temperature = contract.Float(cmd.Float("temperature"))
	}
	if cmd.IsSet("allow-non-english") {
		opts.AllowNonEnglish = contract.Bool(cmd.Bool("allow-non-english"))
	}
	return opts
}

func runDocument(ctx context.Context, cmd *cli.Command, cfg config.ClientConfig, stdout, stderr io.Writer, mode client.Mode) error {
	c, err := newClient(cmd, cfg, stderr)
	if err != nil {
		return err
	}
	doc, err := readDocument(cmd.String("file"))
	if err != nil {
		return err
	}
	out, err := c.Run(ctx, client.Request{
		Mode:     mode,
		Document: doc,
		Question: cmd.String("question"),
		Options:  documentOptions(cmd),
	})
	if err != nil {
		return err
	}
	if out.State == client.StateSkipped {
		slog.New(slog.NewTextHandler(stderr, nil)).Warn("nothing to send", "mode", mode, "hint", skipHint(mode))
		return nil
	}
	client.Render(stdout, out)
	if out.State != client.StateSuccess {
		return errReported
	}
	return nil
}

func skipHint(mode client.Mode) string {
	if mode == client.ModeAsk {
		return "pass --file and --question"
	}
	return "pass --file"
}

func runTranslate(ctx context.Context, cmd *cli.Command, cfg config.ClientConfig, stdout, stderr io.Writer) error {
	c, err := newClient(cmd, cfg, stderr)
	if err != nil {
		return err
	}
	doc, err := readDocument(cmd.String("file"))
	if err != nil {
		return err
	}
	req := client.TranslateRequest{
		Document:  *doc,
		StartPage: cmd.Int("start-page"),
		EndPage:   cmd.Int("end-page"),
		Target:    cmd.String("target"),
		Format:    cmd.String("format"),
	}
	if req.Format == "json" {
		res, err := c.Translate(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Pages %d-%d, %s (%s)\n\n%s\n", res.StartPage, res.EndPage, res.LanguageName, res.TargetLanguage, res.Translated)
		return nil
	}
	dl, err := c.TranslateFile(ctx, req)
	if err != nil {
		return err
	}
	return save(stdout, dl, cmd.String("out"))
}

func runConvert(ctx context.Context, cmd *cli.Command, cfg config.ClientConfig, stdout, stderr io.Writer) error {
	dir, err := convert.ParseDirection(cmd.String("direction"))
	if err != nil {
		return err
	}
	c, err := newClient(cmd, cfg, stderr)
	if err != nil {
		return err
	}
	doc, err := readDocument(cmd.String("file"))
	if err != nil {
		return err
	}
	dl, err := c.Convert(ctx, *doc, dir)
	if err != nil {
		return err
	}
	out := cmd.String("out")
	if out == "" {
		out = filepath.Base(dl.Filename)
	}
	return save(stdout, dl, out)
}

func runGenerate(ctx context.Context, cmd *cli.Command, cfg config.ClientConfig, stdout, stderr io.Writer) error {
	c, err := newClient(cmd, cfg, stderr)
	if err != nil {
		return err
	}
	text, err := c.Generate(ctx, generate.Request{
		Prompt:   cmd.String("prompt"),
		TaskType: generate.TaskType(cmd.String("task")),
		Model:    cmd.String("model"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, text)
	if out := cmd.String("out"); out != "" {
		return save(io.Discard, client.Download{Filename: "generated.txt", Content: []byte(text)}, out)
	}
	return nil
}

func runSession(ctx context.Context, cmd *cli.Command, cfg config.ClientConfig, stdout, stderr io.Writer) error {
	c, err := newClient(cmd, cfg, stderr)
	if err != nil {
		return err
	}
	info, err := c.Session(ctx)
	if err != nil {
		return err
	}
	switch {
	case !info.GateEnabled:
		fmt.Fprintln(stdout, "Access gate disabled.")
	case info.Authenticated && info.ExpiresAt != nil:
		fmt.Fprintf(stdout, "Authenticated until %s.\n", info.ExpiresAt.Local().Format("15:04:05"))
	case info.Expired:
		fmt.Fprintln(stdout, "Session expired.")
	default:
		fmt.Fprintln(stdout, "Not authenticated.")
	}
	return nil
}

// save writes dl to path, or to stdout when path is empty.
func save(stdout io.Writer, dl client.Download, path string) error {
	if path == "" {
		_, err := stdout.Write(dl.Content)
		return err
	}
	if err := os.WriteFile(path, dl.Content, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved %s (%d bytes)\n", path, len(dl.Content))
	return nil
}
