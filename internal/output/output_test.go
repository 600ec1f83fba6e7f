package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestDryRunMsg_Enabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = true
	u.DryRunMsg("would create %s", "file")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would create file")
}

func TestDryRunMsg_Disabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = false
	u.DryRunMsg("would create %s", "file")
	assert.Empty(t, errOut.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestStatusColor(t *testing.T) {
	assert.NotEmpty(t, StatusColor("new"))
	assert.NotEmpty(t, StatusColor("in_progress"))
	assert.NotEmpty(t, StatusColor("resolved"))
	assert.NotEmpty(t, StatusColor("wont_fix"))
	assert.Equal(t, "unknown", StatusColor("unknown"))
}

func TestPriorityColor(t *testing.T) {
	assert.NotEmpty(t, PriorityColor("critical"))
	assert.NotEmpty(t, PriorityColor("high"))
	assert.NotEmpty(t, PriorityColor("medium"))
	assert.NotEmpty(t, PriorityColor("low"))
	assert.Equal(t, "unknown", PriorityColor("unknown"))
}

func TestSeverityColor(t *testing.T) {
	assert.Contains(t, SeverityColor(9.1), "9.10")
	assert.Contains(t, SeverityColor(6.5), "6.50")
	assert.Contains(t, SeverityColor(4.0), "4.00")
	assert.Contains(t, SeverityColor(1.2), "1.20")
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Name", "Status"})
	require.NotNil(t, table)

	table.Append([]string{"discord", "active"})
	table.Append([]string{"github", "active"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "discord") || strings.Contains(result, "DISCORD"),
		"table output should contain provider ids")
	assert.True(t, strings.Contains(result, "github") || strings.Contains(result, "GITHUB"),
		"table output should contain provider ids")
}
