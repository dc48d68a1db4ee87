package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/farmerimport/internal/config"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:   "no trusted proxies ignores headers",
			remote: "203.0.113.9:5000",
			headers: map[string]string{
				"X-Real-IP": "10.1.1.1",
			},
			want: "203.0.113.9:5000",
		},
		{
			name:    "trusted CIDR uses X-Real-IP",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.0.0.5:5000",
			headers: map[string]string{"X-Real-IP": "198.51.100.7"},
			want:    "198.51.100.7",
		},
		{
			name:    "trusted single address uses first forwarded hop",
			trusted: []string{"127.0.0.1"},
			remote:  "127.0.0.1:5000",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.5"},
			want:    "198.51.100.7",
		},
		{
			name:    "invalid header keeps remote",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.0.0.5:5000",
			headers: map[string]string{"X-Real-IP": "not-an-ip"},
			want:    "10.0.0.5:5000",
		},
		{
			name:    "untrusted source keeps remote",
			trusted: []string{"10.0.0.0/8", "garbage"},
			remote:  "192.168.1.4:5000",
			headers: map[string]string{"X-Real-IP": "198.51.100.7"},
			want:    "192.168.1.4:5000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::ffff:10.0.0.1]:443"
	if got := ClientIP(req); got != "10.0.0.1" {
		t.Errorf("ClientIP = %q", got)
	}
}

var testKeys = []config.APIKey{
	{Name: "field-team", Key: "op-key", Role: config.RoleOperator},
	{Name: "lead", Key: "admin-key", Role: config.RoleAdmin},
}

func TestMatchAPIKey(t *testing.T) {
	if k, ok := matchAPIKey("admin-key", testKeys); !ok || k.Name != "lead" {
		t.Errorf("admin-key = %+v, %v", k, ok)
	}
	if _, ok := matchAPIKey("admin-ke", testKeys); ok {
		t.Error("prefix matched")
	}
	if _, ok := matchAPIKey("anything", nil); ok {
		t.Error("matched with no keys")
	}
}

func TestAPIKeyAuthAndRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFromContext(r.Context())
		w.Header().Set("X-Actor", p.Name)
	})

	tests := []struct {
		name      string
		require   bool
		key       string
		role      string
		wantCode  int
		wantActor string
	}{
		{name: "open without key", wantCode: http.StatusOK},
		{name: "open with bad key", key: "nope", wantCode: http.StatusForbidden},
		{name: "required without key", require: true, wantCode: http.StatusUnauthorized},
		{name: "operator", require: true, key: "op-key", role: config.RoleOperator, wantCode: http.StatusOK, wantActor: "field-team"},
		{name: "operator denied admin", require: true, key: "op-key", role: config.RoleAdmin, wantCode: http.StatusForbidden},
		{name: "admin passes operator check", require: true, key: "admin-key", role: config.RoleOperator, wantCode: http.StatusOK, wantActor: "lead"},
		{name: "anonymous admin when open", role: config.RoleAdmin, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h http.Handler = ok
			if tt.role != "" {
				h = RequireRole(tt.role)(h)
			}
			h = APIKeyAuth(testKeys, tt.require)(h)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("X-Actor"); got != tt.wantActor {
				t.Errorf("actor = %q, want %q", got, tt.wantActor)
			}
		})
	}
}

func TestLoggerAnnotate(t *testing.T) {
	var info *requestInfo
	h := Logger(APIKeyAuth(testKeys, false)(Annotate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ = r.Context().Value(requestInfoKey{}).(*requestInfo)
		w.WriteHeader(http.StatusTeapot)
	}))))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "op-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if info == nil || info.actor != "field-team" {
		t.Errorf("request info = %+v", info)
	}
}
