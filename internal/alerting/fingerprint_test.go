package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("S1-probes", "fail", "liveness probe failed")
	b := Fingerprint("S1-probes", "fail", "liveness probe failed")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestFingerprintDistinguishesInputs(t *testing.T) {
	base := Fingerprint("S1", "fail", "down")
	assert.NotEqual(t, base, Fingerprint("S2", "fail", "down"))
	assert.NotEqual(t, base, Fingerprint("S1", "warn", "down"))
	assert.NotEqual(t, base, Fingerprint("S1", "fail", "unreachable"))
}

func TestFingerprintNormalizesNoise(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"case", "Liveness Probe Failed", "liveness probe failed"},
		{"whitespace", "probe   failed\n", "probe failed"},
		{"long digit runs", "latency 1234ms", "latency 98765ms"},
		{"request ids", "request 123456789 failed", "request 987654321 failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t,
				Fingerprint("c", "fail", tt.a),
				Fingerprint("c", "fail", tt.b))
		})
	}
}

func TestFingerprintKeepsDigitRunLength(t *testing.T) {
	assert.NotEqual(t,
		Fingerprint("c", "fail", "HTTP 42"),
		Fingerprint("c", "fail", "HTTP 503"),
		"short runs and long runs normalize differently")
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Latency 1234ms over budget", "latency #ms over budget"},
		{"HTTP  503   error", "http # error"},
		{"HTTP 42 error", "http 00 error"},
		{"  padded  ", "padded"},
		{"run12mix345end", "run00mix#end"},
		{"987", "#"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeMessage(tt.in), "input %q", tt.in)
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		name      string
		checkID   string
		failures  int
		threshold int
		want      Severity
	}{
		{"at threshold", "S2-golden-fact-recall", 3, 3, SeverityWarning},
		{"double threshold", "S2-golden-fact-recall", 6, 3, SeverityHigh},
		{"triple threshold", "S2-golden-fact-recall", 9, 3, SeverityCritical},
		{"security class always critical", "S5-security-negatives", 3, 3, SeverityCritical},
		{"backup class always critical", "S6-backup-restore", 3, 3, SeverityCritical},
		{"firewall class always critical", "firewall-status", 3, 3, SeverityCritical},
		{"just under double", "S1-probes", 5, 3, SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, severityFor(tt.checkID, tt.failures, tt.threshold))
		})
	}
}
