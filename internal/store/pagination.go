package store

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// CursorPage is one keyset page. NextCursor is set only when HasMore is.
type CursorPage struct {
	Items      interface{} `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

type OffsetPage struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

func NewOffsetPage(items interface{}, total int64, page, pageSize int) *OffsetPage {
	var totalPages int
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &OffsetPage{Items: items, Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}
}

// OrderCursor is the (created_at, id) key of the last order on a page.
type OrderCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

func EncodeCursor(cursor OrderCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor turns an empty cursor into one positioned ahead of every
// order, so the first page needs no special casing.
func DecodeCursor(encoded string) (OrderCursor, error) {
	if encoded == "" {
		return OrderCursor{CreatedAt: time.Now().Add(time.Hour), ID: uuid.Max}, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return OrderCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var cursor OrderCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return OrderCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if cursor.CreatedAt.IsZero() {
		return OrderCursor{}, fmt.Errorf("%w: missing timestamp", ErrInvalidCursor)
	}
	return cursor, nil
}

// Before reports whether (createdAt, id) comes after the cursor in
// newest-first order, matching Postgres' row comparison on (created_at, id).
func (c OrderCursor) Before(createdAt time.Time, id uuid.UUID) bool {
	if !createdAt.Equal(c.CreatedAt) {
		return createdAt.Before(c.CreatedAt)
	}
	return bytes.Compare(id[:], c.ID[:]) < 0
}

// NewCursorPage cuts rows fetched with limit+1 down to limit and builds the page.
func NewCursorPage[T any](rows []T, limit int, key func(T) OrderCursor) *CursorPage {
	page := &CursorPage{HasMore: len(rows) > limit}
	if page.HasMore {
		rows = rows[:limit]
		if limit > 0 {
			page.NextCursor = EncodeCursor(key(rows[limit-1]))
		}
	}
	page.Items = rows
	return page
}
