package request

import (
	"net/url"
	"strconv"
	"strings"
)

// Credential is an API key pair appended to requests that need authorization.
type Credential struct {
	ID     string
	Secret string
}

// NewCredential returns a credential for the given key ID and verification code.
func NewCredential(id, secret string) *Credential {
	return &Credential{ID: id, Secret: secret}
}

// Param is a single query parameter.
type Param struct {
	Key   string
	Value string
}

// Query is an ordered list of query parameters. Order is preserved verbatim
// because it is part of the cache key; two queries with the same pairs in a
// different order address different cache entries.
type Query struct {
	params []Param
}

// NewQuery returns an empty query builder.
func NewQuery() *Query {
	return &Query{}
}

// Add appends a parameter and returns the query for chaining.
func (q *Query) Add(key, value string) *Query {
	q.params = append(q.params, Param{Key: key, Value: value})
	return q
}

// AddInt appends an integer parameter.
func (q *Query) AddInt(key string, value int64) *Query {
	return q.Add(key, strconv.FormatInt(value, 10))
}

// Params returns a copy of the parameters in insertion order.
func (q *Query) Params() []Param {
	if q == nil {
		return nil
	}
	return append([]Param(nil), q.params...)
}

// Len returns the number of parameters. A nil query is empty.
func (q *Query) Len() int {
	if q == nil {
		return 0
	}
	return len(q.params)
}

// Encode builds the query string, leading "?" included. When cred is not nil
// its pair is injected first as keyID and vCode. An empty result means there
// is nothing to append.
func (q *Query) Encode(cred *Credential) string {
	parts := make([]string, 0, q.Len()+2)
	if cred != nil {
		parts = append(parts,
			"keyID="+url.QueryEscape(cred.ID),
			"vCode="+url.QueryEscape(cred.Secret),
		)
	}
	for _, p := range q.Params() {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}
