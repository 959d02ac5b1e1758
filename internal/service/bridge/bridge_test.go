package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/romanzh1/course-player/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Deliver(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{"chapter added", `{"type":"qu_chapter_added","data":{"module_id":10,"chapter_id":102}}`, ChapterAdded{ModuleID: 10, ChapterID: 102}},
		{"chapter removed alias", `{"type":"chapter-removed","data":{"module_id":10,"chapter_id":100}}`, ChapterRemoved{ModuleID: 10, ChapterID: 100}},
		{"page removed", `{"type":"qu_page_removed","data":{"module_id":10,"chapter_id":100,"page_index":2}}`, PageRemoved{ModuleID: 10, ChapterID: 100}},
		{"learn next without module", `{"type":"eq_action_learn_next","data":{"chapter_index":1}}`, LearnNext{ChapterIndex: 1}},
		{"chapter finished", `{"type":"qu_chapter_progression_finished","data":{"module_id":10,"chapter_index":0}}`, ChapterProgressionFinished{ModuleID: 10, ChapterIndex: 0}},
		{"module finished", `{"type":"qu_module_progression_finished","data":{"module_id":10}}`, ModuleProgressionFinished{ModuleID: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("event (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	raws := []string{
		`not json`,
		`{"type":"qu_something_else","data":{}}`,
		`{"type":"qu_chapter_added"}`,
		`{"type":"qu_chapter_added","data":{"module_id":10}}`,
		`{"type":"eq_action_learn_next","data":{"module_id":10}}`,
		`{"type":"qu_chapter_progression_finished","data":{"chapter_index":-1}}`,
		`{"type":"qu_module_progression_finished","data":{"chapter_id":3}}`,
		`{"type":"qu_chapter_added","data":{"module_id":"ten","chapter_id":1}}`,
	}

	for _, raw := range raws {
		if _, err := Parse([]byte(raw)); !errors.Is(err, models.ErrMalformedEvent) {
			t.Fatalf("Parse(%s): want ErrMalformedEvent got=%v", raw, err)
		}
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := map[string]string{
		"https://Learn.Example.com":          "https://learn.example.com",
		"https://learn.example.com:443/path": "https://learn.example.com",
		"http://localhost:8080/course/1":     "http://localhost:8080",
		"http://[::1]:80":                    "http://[::1]",
	}
	for in, want := range tests {
		got, ok := NormalizeOrigin(in)
		if !ok || got != want {
			t.Fatalf("NormalizeOrigin(%q): want=%q got=%q ok=%v", in, want, got, ok)
		}
	}

	for _, in := range []string{"", "null", "learn.example.com", "://x"} {
		if _, ok := NormalizeOrigin(in); ok {
			t.Fatalf("NormalizeOrigin(%q) must fail", in)
		}
	}
}

func TestBridgeDropsForeignAndMalformed(t *testing.T) {
	rec := &recorder{}
	b, err := New("https://learn.example.com", rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	payload := []byte(`{"type":"qu_module_progression_finished","data":{"module_id":10}}`)

	if b.Accept(ctx, Message{Origin: "https://evil.example.com", Data: payload}) {
		t.Fatalf("foreign origin must be dropped")
	}
	if b.Accept(ctx, Message{Origin: "", Data: payload}) {
		t.Fatalf("missing origin must be dropped")
	}
	if b.Accept(ctx, Message{Origin: "https://learn.example.com", Data: []byte(`{"type":"qu_chapter_added","data":{}}`)}) {
		t.Fatalf("malformed payload must be dropped")
	}
	if !b.Accept(ctx, Message{Origin: "https://learn.example.com:443", Data: payload}) {
		t.Fatalf("same origin must be delivered")
	}

	want := Stats{Delivered: 1, Foreign: 2, Malformed: 1}
	if got := b.Stats(); got != want {
		t.Fatalf("stats: want=%+v got=%+v", want, got)
	}
	if len(rec.events) != 1 {
		t.Fatalf("delivered events: want=1 got=%d", len(rec.events))
	}
}

func TestBridgePreservesArrivalOrder(t *testing.T) {
	rec := &recorder{}
	b, err := New("http://localhost:8080", rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 20; i++ {
		raw := fmt.Sprintf(`{"type":"eq_action_learn_next","data":{"chapter_index":%d}}`, i)
		b.Accept(context.Background(), Message{Origin: "http://localhost:8080", Data: []byte(raw)})
	}

	for i, ev := range rec.events {
		if got := ev.(LearnNext).ChapterIndex; got != i {
			t.Fatalf("event %d: want chapter_index=%d got=%d", i, i, got)
		}
	}
}

func TestBridgeSinkError(t *testing.T) {
	b, err := New("http://localhost:8080", SinkFunc(func(ctx context.Context, ev Event) error {
		return errors.New("session closed")
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ok := b.Accept(context.Background(), Message{
		Origin: "http://localhost:8080",
		Data:   []byte(`{"type":"qu_module_progression_finished","data":{"module_id":1}}`),
	})
	if ok {
		t.Fatalf("sink failure must report not delivered")
	}
	if got := b.Stats().Delivered; got != 0 {
		t.Fatalf("delivered: want=0 got=%d", got)
	}
}
