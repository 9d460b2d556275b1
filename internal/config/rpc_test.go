package config

import "testing"

func TestRPCEndpoint(t *testing.T) {
	tests := []struct {
		name string
		url  string
		key  string
		want string
	}{
		{
			name: "no key",
			url:  "https://rpc.example.com",
			key:  "",
			want: "https://rpc.example.com",
		},
		{
			name: "key appended",
			url:  "https://rpc.example.com",
			key:  "secret",
			want: "https://rpc.example.com?api-key=secret",
		},
		{
			name: "key merged with existing query",
			url:  "https://rpc.example.com?tier=pro",
			key:  "secret",
			want: "https://rpc.example.com?api-key=secret&tier=pro",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := &RPCConfig{RPCUrl: tt.url, RPCApiKey: tt.key}
			if got := conf.Endpoint(); got != tt.want {
				t.Errorf("Endpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}
