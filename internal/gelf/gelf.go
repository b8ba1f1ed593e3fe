// Package gelf ships zap JSON log entries to a Graylog input over UDP.
package gelf

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"
)

// Writer sends GELF 1.1 messages over UDP. It implements zapcore.WriteSyncer:
// zap's JSON encoder hands it one entry per Write, which is reshaped into a
// GELF message (msg -> short_message, level -> syslog severity, every other
// field -> "_field").
type Writer struct {
	conn     net.Conn
	hostname string
	service  string
}

// New creates a GELF UDP writer connected to addr (e.g. "172.17.0.1:12201").
func New(addr, service string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service
	}

	return &Writer{conn: conn, hostname: hostname, service: service}, nil
}

// Write implements io.Writer. Sending is fire-and-forget; a log call never
// fails because Graylog is unreachable.
func (w *Writer) Write(p []byte) (int, error) {
	payload, err := json.Marshal(w.toGELF(p))
	if err != nil {
		return len(p), nil
	}
	w.conn.Write(payload)
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer. UDP has nothing to flush.
func (w *Writer) Sync() error {
	return nil
}

// Close releases the UDP socket.
func (w *Writer) Close() error {
	return w.conn.Close()
}

func (w *Writer) toGELF(p []byte) map[string]any {
	msg := map[string]any{
		"version":   "1.1",
		"host":      w.hostname,
		"timestamp": float64(time.Now().UnixNano()) / 1e9,
		"level":     6,
		"_service":  w.service,
	}

	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		// Not a zap JSON line; forward it verbatim.
		msg["short_message"] = strings.TrimRight(string(p), "\n")
		return msg
	}

	for k, v := range entry {
		switch k {
		case "msg":
			msg["short_message"] = v
		case "level":
			s, _ := v.(string)
			msg["level"] = severity(s)
		case "ts":
			if ts, ok := v.(float64); ok {
				msg["timestamp"] = ts
			}
		case "id":
			// "_id" is reserved by GELF.
			msg["_field_id"] = v
		default:
			msg["_"+k] = v
		}
	}
	if _, ok := msg["short_message"]; !ok {
		msg["short_message"] = "-"
	}
	return msg
}

// severity maps zap level names to syslog severities.
func severity(level string) int {
	switch level {
	case "debug":
		return 7
	case "info":
		return 6
	case "warn":
		return 4
	case "error":
		return 3
	case "dpanic", "panic", "fatal":
		return 2
	}
	return 6
}
