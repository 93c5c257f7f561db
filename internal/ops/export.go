package ops

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"time"

	"fedigate/internal/core/model"
	perr "fedigate/internal/platform/errors"
)

// exportMaxHops bounds the outbox walk so a hostile collection cannot
// hold an export open forever
const exportMaxHops = 10

// Export is a rendered post archive
type Export struct {
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
	Count       int    `json:"count"`
}

// ExportPosts renders an actor's recent posts as JSON, Markdown, or CSV
func (s *Service) ExportPosts(ctx context.Context, acct, format string, limit int) (Export, error) {
	switch format {
	case "json", "markdown", "csv":
	default:
		return Export{}, perr.InvalidInputf("format must be json, markdown, or csv, got %q", format)
	}
	if limit <= 0 {
		limit = 50
	}
	finish, err := s.begin(ctx, "export_posts", map[string]any{"acct": acct, "format": format, "limit": limit})
	if err != nil {
		return Export{}, err
	}
	out, err := s.export(ctx, acct, format, limit)
	finish(err)
	return out, err
}

func (s *Service) export(ctx context.Context, acct, format string, limit int) (Export, error) {
	actor, err := s.resolver.Resolve(ctx, acct)
	if err != nil {
		return Export{}, err
	}
	if actor.Outbox == "" {
		return Export{}, perr.Newf(perr.ErrorCodeActorNotDiscoverable, "%s exposes no outbox", acct)
	}

	var posts []model.Post
	cursor := ""
	for hop := 0; hop < exportMaxHops && len(posts) < limit; hop++ {
		page, err := s.apub.Outbox(ctx, actor.Outbox, cursor)
		if err != nil {
			return Export{}, err
		}
		posts = append(posts, page.Items...)
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	// outbox items carry a bare attributedTo; fill in what we resolved
	for i := range posts {
		if posts[i].Author.Acct == "" {
			posts[i].Author = actor
		}
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(posts, "", "  ")
		if err != nil {
			return Export{}, perr.Wrap(err, perr.ErrorCodeUnknown, "encode export")
		}
		return Export{Format: format, ContentType: "application/json", Data: data, Count: len(posts)}, nil
	case "markdown":
		return Export{Format: format, ContentType: "text/markdown", Data: renderMarkdown(actor, posts), Count: len(posts)}, nil
	default:
		data, err := renderCSV(posts)
		if err != nil {
			return Export{}, err
		}
		return Export{Format: format, ContentType: "text/csv", Data: data, Count: len(posts)}, nil
	}
}

func renderMarkdown(actor model.Actor, posts []model.Post) []byte {
	var b strings.Builder
	b.WriteString("# Posts by " + actor.Acct + "\n\n")
	for _, p := range posts {
		b.WriteString("### " + p.Published.Format(time.RFC3339) + "\n\n")
		if p.SpoilerText != "" {
			b.WriteString("**CW: " + p.SpoilerText + "**\n\n")
		}
		b.WriteString(p.ContentText + "\n\n")
		if p.URL != "" {
			b.WriteString("[link](" + p.URL + ")\n\n")
		}
	}
	return []byte(b.String())
}

func renderCSV(posts []model.Post) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "published", "author", "visibility", "content_text", "url"}); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "encode export")
	}
	for _, p := range posts {
		author := p.Author.Acct
		if author == "" {
			author = p.Author.ID
		}
		rec := []string{
			p.ID,
			p.Published.Format(time.RFC3339),
			author,
			string(p.Visibility),
			p.ContentText,
			p.URL,
		}
		if err := w.Write(rec); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "encode export")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "encode export")
	}
	return buf.Bytes(), nil
}
