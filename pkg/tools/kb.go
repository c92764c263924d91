package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// KBEntry is one line of the JSONL knowledge base.
type KBEntry struct {
	ID   string  `json:"id"`
	Text string  `json:"text"`
	Src  string  `json:"src"`
	Date *string `json:"d"`
	Cred string  `json:"cred"`
}

// KBItem is a knowledge base hit.
type KBItem struct {
	KID   string  `json:"kid"`
	Text  string  `json:"text"`
	Src   string  `json:"src"`
	Date  *string `json:"d"`
	Cred  string  `json:"cred"`
	Score int     `json:"score"`
}

// KBResult is the kb_lookup payload.
type KBResult struct {
	Items []KBItem `json:"items"`
}

// KBLookup ranks knowledge base entries by how many query terms they contain.
type KBLookup struct {
	tool.Base
	path string
}

var kbLookupSchema = tool.MustSchema(false,
	tool.Parameter{Name: "q", Type: "string", Description: "Query", Required: true},
	tool.Parameter{Name: "lim", Type: "integer", Description: "Maximum items", Minimum: tool.Bound(1), Maximum: tool.Bound(20), Default: 4},
)

func NewKBLookup(path string) *KBLookup {
	return &KBLookup{
		Base: tool.Base{
			ToolName:    "kb_lookup",
			Description: "Look up evidence in the local JSONL knowledge base.",
		},
		path: path,
	}
}

func (t *KBLookup) Schema() *tool.Schema { return kbLookupSchema }

func (t *KBLookup) ValidateArgs(args tool.Args) (tool.Args, error) {
	q := args.TrimmedString("q")
	if q == "" {
		return nil, tool.NewArgError("q is required")
	}
	lim := planLimit
	if args.Has("lim") && args["lim"] != nil {
		n, ok := args.Int("lim")
		if !ok || n < 1 || n > 20 {
			return nil, tool.NewArgError("lim must be 1..20")
		}
		lim = n
	}
	return tool.Args{"q": q, "lim": lim}, nil
}

func (t *KBLookup) Execute(ctx context.Context, args tool.Args) (toolresult.Envelope[KBResult], error) {
	q, _ := args.String("q")
	lim, _ := args.Int("lim")

	if t.path == "" {
		return toolresult.Failure[KBResult]("KB_NOT_CONFIGURED", "set tools.kb_path to a JSONL knowledge base"), nil
	}
	entries, err := loadKB(ctx, t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return toolresult.Failure[KBResult]("KB_NOT_CONFIGURED", fmt.Sprintf("knowledge base %s does not exist", t.path)), nil
	}
	if err != nil {
		return toolresult.Failure[KBResult]("KB_READ_FAIL", err.Error()), nil
	}

	terms := strings.Fields(strings.ToLower(q))
	items := []KBItem{}
	for _, e := range entries {
		if e.Text == "" {
			continue
		}
		score := termHits(e.Text, terms)
		if score == 0 {
			continue
		}
		cred := e.Cred
		if cred == "" {
			cred = ConfLow
		}
		items = append(items, KBItem{KID: e.ID, Text: e.Text, Src: e.Src, Date: e.Date, Cred: cred, Score: score})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].KID < items[j].KID
	})
	if len(items) > lim {
		items = items[:lim]
	}
	return toolresult.Success(KBResult{Items: items}), nil
}

func termHits(text string, terms []string) int {
	lowered := strings.ToLower(text)
	n := 0
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			n++
		}
	}
	return n
}

// loadKB reads every non-blank line of a JSONL file.
func loadKB(ctx context.Context, path string) ([]KBEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []KBEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var e KBEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}
	return entries, nil
}

// evidenceLog appends search hits to the knowledge base.
type evidenceLog struct {
	mu   sync.Mutex
	path string
}

func (l *evidenceLog) append(hits []SearchHit) error {
	if l == nil || l.path == "" || len(hits) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create knowledge base directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer f.Close()

	today := time.Now().Format("2006-01-02")
	enc := json.NewEncoder(f)
	for _, h := range hits {
		text := h.Snippet
		if text == "" {
			text = h.Title
		}
		src := h.URL
		if src == "" {
			src = h.Src
		}
		date := today
		if h.Date != nil && *h.Date != "" {
			date = *h.Date
		}
		entry := KBEntry{ID: h.Src + ":" + h.RID, Text: text, Src: src, Date: &date, Cred: ConfMed}
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("failed to append evidence: %w", err)
		}
	}
	return nil
}
