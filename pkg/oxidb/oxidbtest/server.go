// Package oxidbtest runs an in-memory oxidb-server for tests. It speaks the
// real wire protocol and implements the subset of commands the client uses:
// equality queries, single-field sort, $set updates, unique indexes,
// substring text search and blob buckets.
package oxidbtest

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"
)

// Server is a running fake. Host and Port are ready for oxidb.Connect.
type Server struct {
	Host string
	Port int

	ln net.Listener

	mu      sync.Mutex
	nextID  float64
	colls   map[string][]map[string]any
	unique  map[string][]string
	text    map[string][]string
	buckets map[string]map[string]blob
	fail    map[string]string
}

type blob struct {
	data        string
	contentType string
	metadata    map[string]any
}

// New starts a server that stops when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("oxidbtest: listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	s := &Server{
		Host:    "127.0.0.1",
		Port:    addr.Port,
		ln:      ln,
		colls:   map[string][]map[string]any{},
		unique:  map[string][]string{},
		text:    map[string][]string{},
		buckets: map[string]map[string]blob{},
		fail:    map[string]string{},
	}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

// Close stops accepting connections. Open connections stay served until
// their clients hang up.
func (s *Server) Close() {
	s.ln.Close()
}

// FailNext makes the next request with command cmd answer with msg.
func (s *Server) FailNext(cmd, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[cmd] = msg
}

// Docs returns a copy of every document in a collection.
func (s *Server) Docs(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.colls[collection]))
	for _, d := range s.colls[collection] {
		out = append(out, copyDoc(d))
	}
	return out
}

// Objects returns the keys stored in a bucket, sorted.
func (s *Server) Objects(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.buckets[bucket]))
	for k := range s.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			return
		}
		payload := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(payload, &req); err != nil {
			return
		}
		resp, _ := json.Marshal(s.dispatch(req))
		frame := make([]byte, 4+len(resp))
		binary.LittleEndian.PutUint32(frame, uint32(len(resp)))
		copy(frame[4:], resp)
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func ok(data any) map[string]any { return map[string]any{"ok": true, "data": data} }

func fail(format string, args ...any) map[string]any {
	return map[string]any{"ok": false, "error": fmt.Sprintf(format, args...)}
}

func (s *Server) dispatch(req map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd, _ := req["cmd"].(string)
	if msg, found := s.fail[cmd]; found {
		delete(s.fail, cmd)
		return fail("%s", msg)
	}
	coll, _ := req["collection"].(string)
	query, _ := req["query"].(map[string]any)

	switch cmd {
	case "ping":
		return ok("pong")
	case "create_index", "create_composite_index":
		return ok("ok")
	case "create_unique_index":
		field, _ := req["field"].(string)
		s.unique[coll] = append(s.unique[coll], field)
		return ok("ok")
	case "create_text_index":
		for _, f := range req["fields"].([]any) {
			s.text[coll] = append(s.text[coll], f.(string))
		}
		return ok("ok")
	case "insert":
		doc, _ := req["doc"].(map[string]any)
		for _, field := range s.unique[coll] {
			for _, existing := range s.colls[coll] {
				if existing[field] == doc[field] {
					return fail("unique index conflict on %s", field)
				}
			}
		}
		s.nextID++
		doc = copyDoc(doc)
		doc["_id"] = s.nextID
		s.colls[coll] = append(s.colls[coll], doc)
		return ok(map[string]any{"id": s.nextID})
	case "find":
		return ok(s.find(coll, query, req))
	case "find_one":
		for _, d := range s.colls[coll] {
			if matches(d, query) {
				return ok(copyDoc(d))
			}
		}
		return ok(nil)
	case "count":
		n := 0
		for _, d := range s.colls[coll] {
			if matches(d, query) {
				n++
			}
		}
		return ok(map[string]any{"count": n})
	case "update_one":
		update, _ := req["update"].(map[string]any)
		set, _ := update["$set"].(map[string]any)
		for _, d := range s.colls[coll] {
			if matches(d, query) {
				for k, v := range set {
					d[k] = v
				}
				return ok(map[string]any{"modified": 1})
			}
		}
		return ok(map[string]any{"modified": 0})
	case "delete_one":
		docs := s.colls[coll]
		for i, d := range docs {
			if matches(d, query) {
				s.colls[coll] = append(docs[:i:i], docs[i+1:]...)
				return ok(map[string]any{"deleted": 1})
			}
		}
		return ok(map[string]any{"deleted": 0})
	case "text_search":
		q, _ := req["query"].(string)
		limit, _ := req["limit"].(float64)
		return ok(s.textSearch(coll, strings.ToLower(q), int(limit)))
	case "create_bucket":
		bucket, _ := req["bucket"].(string)
		if s.buckets[bucket] == nil {
			s.buckets[bucket] = map[string]blob{}
		}
		return ok("ok")
	case "put_object":
		bucket, _ := req["bucket"].(string)
		key, _ := req["key"].(string)
		if s.buckets[bucket] == nil {
			return fail("bucket %s not found", bucket)
		}
		data, _ := req["data"].(string)
		ct, _ := req["content_type"].(string)
		meta, _ := req["metadata"].(map[string]any)
		s.buckets[bucket][key] = blob{data: data, contentType: ct, metadata: meta}
		return ok(map[string]any{"key": key})
	case "get_object":
		bucket, _ := req["bucket"].(string)
		key, _ := req["key"].(string)
		b, found := s.buckets[bucket][key]
		if !found {
			return fail("object %s/%s not found", bucket, key)
		}
		return ok(map[string]any{"content": b.data, "content_type": b.contentType, "metadata": b.metadata})
	case "delete_object":
		bucket, _ := req["bucket"].(string)
		key, _ := req["key"].(string)
		delete(s.buckets[bucket], key)
		return ok("ok")
	}
	return fail("unknown command %q", cmd)
}

func (s *Server) find(coll string, query, req map[string]any) []map[string]any {
	var out []map[string]any
	for _, d := range s.colls[coll] {
		if matches(d, query) {
			out = append(out, copyDoc(d))
		}
	}
	if by, _ := req["sort"].(map[string]any); len(by) > 0 {
		for field, dir := range by {
			desc := dir.(float64) < 0
			sort.SliceStable(out, func(i, j int) bool {
				a, b := fmt.Sprint(out[i][field]), fmt.Sprint(out[j][field])
				if desc {
					return a > b
				}
				return a < b
			})
		}
	}
	if skip, found := req["skip"].(float64); found {
		if int(skip) >= len(out) {
			return nil
		}
		out = out[int(skip):]
	}
	if limit, found := req["limit"].(float64); found && int(limit) < len(out) {
		out = out[:int(limit)]
	}
	return out
}

func (s *Server) textSearch(coll, q string, limit int) []map[string]any {
	var out []map[string]any
	for _, d := range s.colls[coll] {
		for _, field := range s.text[coll] {
			if v, _ := d[field].(string); q != "" && strings.Contains(strings.ToLower(v), q) {
				out = append(out, copyDoc(d))
				break
			}
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func matches(doc, query map[string]any) bool {
	for k, want := range query {
		if fmt.Sprint(doc[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func copyDoc(d map[string]any) map[string]any {
	raw, _ := json.Marshal(d)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

