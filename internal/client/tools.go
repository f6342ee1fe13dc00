package client

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/convert"
	"pdf-assistant/internal/generate"
	"pdf-assistant/internal/translate"
)

// Download is a file returned as an attachment.
type Download struct {
	Filename    string
	ContentType string
	Content     []byte
}

// TranslateRequest is a translation action. Format is "json", "txt" or "columns".
type TranslateRequest struct {
	Document  contract.UploadedDocument
	StartPage int
	EndPage   int
	Target    string
	Format    string
}

func (r TranslateRequest) fields() url.Values {
	v := url.Values{}
	v.Set("target_lang", r.Target)
	if r.Format != "" {
		v.Set("format", r.Format)
	}
	if r.StartPage != 0 {
		v.Set(contract.FieldStartPage, strconv.Itoa(r.StartPage))
	}
	if r.EndPage != 0 {
		v.Set(contract.FieldEndPage, strconv.Itoa(r.EndPage))
	}
	return v
}

// Translate returns the structured translation of a page range.
func (c *Client) Translate(ctx context.Context, req TranslateRequest) (translate.Result, error) {
	req.Format = "json"
	resp, err := c.upload(ctx, "/translate", &req.Document, contract.PDFContentType, req.fields())
	if err != nil {
		return translate.Result{}, err
	}
	var res translate.Result
	if err := json.Unmarshal(resp.body, &res); err != nil {
		return translate.Result{}, fmt.Errorf("decode translation: %w", err)
	}
	return res, nil
}

// TranslateFile returns the translation rendered as a text attachment.
func (c *Client) TranslateFile(ctx context.Context, req TranslateRequest) (Download, error) {
	if req.Format == "" || req.Format == "json" {
		req.Format = "txt"
	}
	resp, err := c.upload(ctx, "/translate", &req.Document, contract.PDFContentType, req.fields())
	if err != nil {
		return Download{}, err
	}
	return attachment(resp, "translated.txt"), nil
}

// Convert sends doc for conversion in direction d.
func (c *Client) Convert(ctx context.Context, doc contract.UploadedDocument, d convert.Direction) (Download, error) {
	ct := doc.ContentType
	if ct == "" {
		ct = mimetype.Detect(doc.Content).String()
	}
	resp, err := c.upload(ctx, "/convert", &doc, ct, url.Values{"direction": {string(d)}})
	if err != nil {
		return Download{}, err
	}
	return attachment(resp, convert.OutputName(doc.Filename, d)), nil
}

// Generate runs a free-form generation task and returns the text.
func (c *Client) Generate(ctx context.Context, req generate.Request) (string, error) {
	req.Download = false
	p, err := jsonPayload(req)
	if err != nil {
		return "", err
	}
	resp, err := c.gated(ctx, "POST", "/generate", p)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", newAPIError(resp.status, resp.body, resp.url)
	}
	var out struct {
		Result *string `json:"result"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil || out.Result == nil {
		return "", contract.ErrUnexpectedFormat
	}
	return *out.Result, nil
}

func (c *Client) upload(ctx context.Context, path string, doc *contract.UploadedDocument, contentType string, fields url.Values) (response, error) {
	p, err := multipartPayload(doc, contentType, fields)
	if err != nil {
		return response{}, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.gated(ctx, "POST", path, p)
	if err != nil {
		return response{}, err
	}
	if !resp.ok() {
		return response{}, newAPIError(resp.status, resp.body, resp.url)
	}
	return resp, nil
}

// attachment names a download from its Content-Disposition, falling back to
// fallback when the header is missing or malformed.
// attachment keeps only the base name the server suggests, so a hostile
// Content-Disposition cannot point outside the working directory.
func attachment(resp response, fallback string) Download {
	name := fallback
	if _, params, err := mime.ParseMediaType(resp.header.Get("Content-Disposition")); err == nil {
		base := filepath.Base(strings.ReplaceAll(params["filename"], "\\", "/"))
		switch base {
		case "", ".", "..", "/":
		default:
			name = base
		}
	}
	return Download{Filename: name, ContentType: resp.header.Get("Content-Type"), Content: resp.body}
}
