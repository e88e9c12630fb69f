package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/frontdata"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/rents"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// mockNotion serves pages in chunks and records writes.
type mockNotion struct {
	pages     []notionapi.Page
	pageSize  int
	created   []notionapi.Properties
	updated   map[string]notionapi.Properties
	deleted   []string
	failWrite bool
}

func newMockNotion(pageSize int, keys ...string) *mockNotion {
	m := &mockNotion{pageSize: pageSize, updated: make(map[string]notionapi.Properties)}
	for i, key := range keys {
		m.pages = append(m.pages, notionapi.Page{
			ID: notionapi.ObjectID("page-" + string(rune('a'+i))),
			Properties: notionapi.Properties{
				PropRentKey: &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: key}}},
			},
		})
	}
	return m
}

func (m *mockNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.failWrite {
		return nil, errors.New("rate limited")
	}
	m.created = append(m.created, properties)
	return &notionapi.Page{}, nil
}

func (m *mockNotion) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.failWrite {
		return nil, errors.New("rate limited")
	}
	m.updated[pageID] = properties
	return &notionapi.Page{}, nil
}

func (m *mockNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	start := 0
	if req.StartCursor != "" {
		for i, p := range m.pages {
			if notionapi.Cursor(p.ID) == req.StartCursor {
				start = i
			}
		}
	}
	end := start + m.pageSize
	if end >= len(m.pages) {
		return &notionapi.DatabaseQueryResponse{Results: m.pages[start:]}, nil
	}
	return &notionapi.DatabaseQueryResponse{
		Results:    m.pages[start:end],
		HasMore:    true,
		NextCursor: notionapi.Cursor(m.pages[end].ID),
	}, nil
}

func (m *mockNotion) DeletePage(ctx context.Context, pageID string) error {
	if m.failWrite {
		return errors.New("rate limited")
	}
	m.deleted = append(m.deleted, pageID)
	return nil
}

func view(tenantID string, tm int64) frontdata.RentView {
	return frontdata.RentView{
		Term:        term.Term(tm),
		Month:       3,
		Year:        2024,
		OccupantID:  tenantID,
		Occupant:    "Tenant " + tenantID,
		TotalAmount: decimal.RequireFromString("1000"),
		Payment:     decimal.RequireFromString("250.5"),
		NewBalance:  decimal.RequireFromString("-749.5"),
		Status:      ledger.StatusPartiallyPaid,
	}
}

func TestSyncRents(t *testing.T) {
	m := newMockNotion(2,
		"t1:2024030100",  // updated
		"t9:2024030100",  // stale in range, archived
		"t9:2024020100",  // other month, kept
		"not a rent key", // ignored
	)
	views := []frontdata.RentView{view("t1", 2024030100), view("t2", 2024030100)}

	stats, err := SyncRents(context.Background(), m, "db", 2024030100, 2024033123, views, false)
	if err != nil {
		t.Fatalf("SyncRents() error: %v", err)
	}

	if stats.Created != 1 || stats.Updated != 1 || stats.Archived != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if _, ok := m.updated["page-a"]; !ok {
		t.Errorf("updated = %v, want page-a", m.updated)
	}
	if len(m.deleted) != 1 || m.deleted[0] != "page-b" {
		t.Errorf("deleted = %v, want [page-b]", m.deleted)
	}
	if len(m.created) != 1 {
		t.Fatalf("created = %d", len(m.created))
	}
	title := m.created[0][PropRentKey].(notionapi.TitleProperty)
	if title.Title[0].Text.Content != "t2:2024030100" {
		t.Errorf("created key = %q", title.Title[0].Text.Content)
	}
}

func TestSyncRents_DryRun(t *testing.T) {
	m := newMockNotion(100, "t1:2024030100", "t9:2024030100")
	stats, err := SyncRents(context.Background(), m, "db", 2024030100, 2024033123, []frontdata.RentView{view("t1", 2024030100)}, true)
	if err != nil {
		t.Fatalf("SyncRents() error: %v", err)
	}
	if stats.Updated != 1 || stats.Archived != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(m.created)+len(m.updated)+len(m.deleted) != 0 {
		t.Error("dry run wrote to Notion")
	}
}

func TestSyncRents_WriteFailuresAreCounted(t *testing.T) {
	m := newMockNotion(100, "t9:2024030100")
	m.failWrite = true
	stats, err := SyncRents(context.Background(), m, "db", 2024030100, 2024033123, []frontdata.RentView{view("t1", 2024030100)}, false)
	if err != nil {
		t.Fatalf("SyncRents() error: %v", err)
	}
	if stats.Failed != 2 || stats.Created != 0 || stats.Archived != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

type fakeMonths struct {
	board *rents.MonthRents
	err   error
	asked []int
}

func (f *fakeMonths) RentsByMonth(ctx context.Context, info notify.RequestInfo, year, month int) (*rents.MonthRents, error) {
	f.asked = append(f.asked, year, month)
	return f.board, f.err
}

func TestSyncMonth(t *testing.T) {
	m := newMockNotion(100, "t9:2024031500", "t9:2024040100")
	src := &fakeMonths{board: &rents.MonthRents{Rents: []frontdata.RentView{view("t1", 2024030100)}}}

	stats, err := SyncMonth(context.Background(), src, m, "db", 2024, time.March, false)
	if err != nil {
		t.Fatalf("SyncMonth() error: %v", err)
	}
	if len(src.asked) != 2 || src.asked[0] != 2024 || src.asked[1] != 3 {
		t.Errorf("asked = %v", src.asked)
	}
	if stats.Created != 1 || stats.Archived != 1 {
		t.Errorf("stats = %+v", stats)
	}

	src.err = errors.New("store down")
	if _, err := SyncMonth(context.Background(), src, m, "db", 2024, time.March, false); err == nil {
		t.Error("expected error from month source")
	}
}

func TestRentKey(t *testing.T) {
	key := RentKey("tenant:with:colons", 2024030100)
	id, tm, ok := ParseRentKey(key)
	if !ok || id != "tenant:with:colons" || tm != 2024030100 {
		t.Errorf("ParseRentKey(%q) = %q, %d, %v", key, id, tm, ok)
	}

	for _, bad := range []string{"", "t1", ":2024030100", "t1:abc", "t1:2024133100"} {
		if _, _, ok := ParseRentKey(bad); ok {
			t.Errorf("ParseRentKey(%q) should fail", bad)
		}
	}
}

func TestRentToNotionProperties(t *testing.T) {
	v := view("t1", 2024030100)
	v.Reference = "A-1"
	props := RentToNotionProperties(v)

	if got := props[PropPaid].(notionapi.NumberProperty).Number; got != 250.5 {
		t.Errorf("Paid = %v", got)
	}
	if got := props[PropStatus].(notionapi.SelectProperty).Select.Name; got != string(ledger.StatusPartiallyPaid) {
		t.Errorf("Status = %q", got)
	}
	if _, ok := props[PropReference]; !ok {
		t.Error("missing Reference")
	}
	if _, ok := props[PropDescription]; ok {
		t.Error("empty description should be omitted")
	}
	start := time.Time(*props[PropPeriod].(notionapi.DateProperty).Date.Start)
	if !start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Period = %v", start)
	}
}
