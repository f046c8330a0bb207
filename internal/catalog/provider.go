package catalog

import (
	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

// Mode selects how results are presented.
type Mode string

const (
	ModePaged    Mode = "paged"
	ModeInfinite Mode = "infinite"
)

// ParseMode maps a request value to a Mode; anything but "infinite" is paged.
func ParseMode(s string) Mode {
	if Mode(s) == ModeInfinite {
		return ModeInfinite
	}
	return ModePaged
}

// Request is the window a provider wants fetched next.
type Request struct {
	Offset    int
	Limit     int
	WithCount bool
}

// Result is what a provider currently presents.
type Result struct {
	Items []domain.ProductSummary `json:"items"`
	// Page, TotalCount and TotalPages are filled in paged mode only and stay
	// zero in infinite mode.
	Page       int  `json:"page"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// ResultProvider is one loading strategy over a Filter.
type ResultProvider interface {
	Mode() Mode
	// Next returns the window to fetch for f, or false when nothing is left.
	Next(f Filter) (Request, bool)
	// Apply records a successful fetch of req.
	Apply(f Filter, req Request, page store.ProductPage)
	Current() Result
	// Reset drops everything fetched so far.
	Reset()
}

// OffsetProvider shows one numbered page at a time with a total page count.
type OffsetProvider struct {
	result Result
}

func NewOffsetProvider() *OffsetProvider {
	return &OffsetProvider{result: Result{Items: []domain.ProductSummary{}}}
}

func (p *OffsetProvider) Mode() Mode { return ModePaged }

func (p *OffsetProvider) Next(f Filter) (Request, bool) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return Request{Offset: (page - 1) * PageSize, Limit: PageSize, WithCount: true}, true
}

func (p *OffsetProvider) Apply(f Filter, req Request, page store.ProductPage) {
	totalPages := TotalPages(page.Total)
	p.result = Result{
		Items:      append([]domain.ProductSummary{}, page.Items...),
		Page:       req.Offset/PageSize + 1,
		TotalCount: page.Total,
		TotalPages: totalPages,
		HasMore:    req.Offset/PageSize+1 < totalPages,
	}
}

func (p *OffsetProvider) Current() Result {
	r := p.result
	r.Items = append([]domain.ProductSummary{}, r.Items...)
	return r
}

func (p *OffsetProvider) Reset() {
	p.result = Result{Items: []domain.ProductSummary{}}
}

// TotalPages is ceil(total / PageSize).
func TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// InfiniteProvider appends successive windows into one list. A window with
// fewer than PageSize raw rows ends the list.
type InfiniteProvider struct {
	cursor int
	items  []domain.ProductSummary
	done   bool
}

func NewInfiniteProvider() *InfiniteProvider {
	return &InfiniteProvider{items: []domain.ProductSummary{}}
}

func (p *InfiniteProvider) Mode() Mode { return ModeInfinite }

func (p *InfiniteProvider) Next(Filter) (Request, bool) {
	if p.done {
		return Request{}, false
	}
	return Request{Offset: p.cursor, Limit: PageSize}, true
}

func (p *InfiniteProvider) Apply(_ Filter, req Request, page store.ProductPage) {
	if req.Offset != p.cursor {
		return
	}
	p.items = append(p.items, page.Items...)
	p.cursor += PageSize
	if page.Fetched < PageSize {
		p.done = true
	}
}

func (p *InfiniteProvider) Current() Result {
	return Result{
		Items:   append([]domain.ProductSummary{}, p.items...),
		HasMore: !p.done,
	}
}

// Started reports whether at least one window has been applied.
func (p *InfiniteProvider) Started() bool {
	return p.cursor > 0
}

func (p *InfiniteProvider) Reset() {
	p.cursor = 0
	p.items = []domain.ProductSummary{}
	p.done = false
}
