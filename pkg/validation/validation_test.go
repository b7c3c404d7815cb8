package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "simple", input: "rep@roofer.com", want: true},
		{name: "subdomain", input: "team.lead@mail.roofer.com", want: true},
		{name: "plus tag", input: "rep+test@roofer.com", want: true},
		{name: "missing at", input: "rep.roofer.com", want: false},
		{name: "missing tld", input: "rep@roofer", want: false},
		{name: "empty", input: "", want: false},
		{name: "spaces", input: "rep @roofer.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidEmail(tt.input))
		})
	}
}

func TestCheckPassword(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name       string
		password   string
		wantIssues int
	}{
		{name: "strong", password: "Secure1!pass", wantIssues: 0},
		{name: "too short", password: "Ab1!", wantIssues: 1},
		{name: "no uppercase", password: "secure1!pass", wantIssues: 1},
		{name: "no digit", password: "Secure!!pass", wantIssues: 1},
		{name: "no special", password: "Secure11pass", wantIssues: 1},
		{name: "everything wrong", password: "abc", wantIssues: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := CheckPassword(tt.password, policy)
			assert.Len(t, issues, tt.wantIssues)
		})
	}
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("703-555-0100"))
	assert.True(t, ValidPhone("(703) 555-0100"))
	assert.True(t, ValidPhone("+1 703 555 0100"))
	assert.True(t, ValidPhone("7035550100"))
	assert.False(t, ValidPhone("555-0100"))
	assert.False(t, ValidPhone("not a phone"))
}

func TestValidScenarioID(t *testing.T) {
	assert.True(t, ValidScenarioID("scenario_1_12"))
	assert.True(t, ValidScenarioID("scenario_6_1"))
	assert.False(t, ValidScenarioID("scenario_1"))
	assert.False(t, ValidScenarioID("scenario_a_1"))
	assert.False(t, ValidScenarioID("Scenario_1_1"))
}

func TestSafeFilename(t *testing.T) {
	allowed := []string{"pdf", "docx", "txt"}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "allowed pdf", input: "estimate.pdf", wantErr: false},
		{name: "allowed upper ext", input: "Claim.PDF", wantErr: false},
		{name: "disallowed ext", input: "run.exe", wantErr: true},
		{name: "traversal", input: "../../etc/passwd", wantErr: true},
		{name: "path separator", input: "docs/estimate.pdf", wantErr: true},
		{name: "no extension", input: "estimate", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeFilename(tt.input, allowed)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "hello", StripHTML("<b>hello</b>"))
	assert.Equal(t, "no markup", StripHTML("no markup"))
	// script content is dropped entirely, not just the tags
	assert.Equal(t, "", StripHTML("<script>alert(1)</script>"))
}
