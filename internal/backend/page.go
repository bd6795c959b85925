package backend

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
)

// Page is one page of a listing.
//
// The backend answers listings either with a bare array (older endpoints) or
// with a page envelope. Users report totalElements; roles and permissions
// report totalItems. Both decode into TotalElements.
type Page[T any] struct {
	Content       []T
	TotalPages    int
	TotalElements int64
	Number        int
	Size          int
}

// UnmarshalJSON accepts a bare array or a page envelope.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*p = Page[T]{Content: items, TotalPages: 1, TotalElements: int64(len(items)), Size: len(items)}
		return nil
	}

	var env struct {
		Content       []T    `json:"content"`
		TotalPages    int    `json:"totalPages"`
		TotalElements *int64 `json:"totalElements"`
		TotalItems    *int64 `json:"totalItems"`
		Number        int    `json:"number"`
		Page          *int   `json:"page"`
		Size          int    `json:"size"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}

	*p = Page[T]{Content: env.Content, TotalPages: env.TotalPages, Number: env.Number, Size: env.Size}
	switch {
	case env.TotalElements != nil:
		p.TotalElements = *env.TotalElements
	case env.TotalItems != nil:
		p.TotalElements = *env.TotalItems
	default:
		p.TotalElements = int64(len(env.Content))
	}
	if env.Page != nil {
		p.Number = *env.Page
	}
	return nil
}

// PageQuery selects a page. Size zero leaves paging to the backend.
type PageQuery struct {
	Page int
	Size int
}

func (q PageQuery) values() url.Values {
	v := url.Values{}
	if q.Size > 0 {
		v.Set("page", strconv.Itoa(q.Page))
		v.Set("size", strconv.Itoa(q.Size))
	}
	return v
}
