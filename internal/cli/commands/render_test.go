package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/talkgen/internal/cli/config"
	"github.com/leapstack-labs/talkgen/internal/cli/testutil"
	"github.com/leapstack-labs/talkgen/internal/generator"
)

func testInvocation() *generator.Invocation {
	return &generator.Invocation{
		Binary: "python",
		Args:   []string{"generate_multitalk.py", "--input_json", "examples/my test.json"},
		Dir:    "/srv/multitalk",
		Env:    []string{"DISABLE_FLASH_ATTN=1"},
	}
}

func TestRenderDryRun_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()

	require.NoError(t, renderDryRun(tr.Renderer, "standard", testInvocation()))

	assert.Equal(t, "DISABLE_FLASH_ATTN=1 python generate_multitalk.py --input_json 'examples/my test.json'\n", tr.Output())
	assert.Empty(t, tr.ErrorOutput())
	testutil.AssertNoANSI(t, tr.Output())
}

func TestRenderDryRun_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()

	require.NoError(t, renderDryRun(tr.Renderer, "job:abc", testInvocation()))

	var got DryRunOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	assert.Equal(t, "job:abc", got.Profile)
	assert.Equal(t, "/srv/multitalk", got.Dir)
	assert.Equal(t, []string{"python", "generate_multitalk.py", "--input_json", "examples/my test.json"}, got.Argv)
	assert.Equal(t, []string{"DISABLE_FLASH_ATTN=1"}, got.Env)
}

func TestRenderDoctor(t *testing.T) {
	cfg := &config.Config{GeneratorDir: "/srv/multitalk"}

	tests := []struct {
		name   string
		out    DoctorOutput
		stdout []string
		stderr string
	}{
		{
			name: "all passing",
			out: DoctorOutput{
				ConfigFile: "/srv/talkgen.yaml",
				Checks:     []Check{{Name: "python", Status: CheckOK, Detail: "Python 3.10"}},
			},
			stdout: []string{"# talkgen doctor", "- **Config**: /srv/talkgen.yaml", "- python: Success (Python 3.10)", "**All checks passed**"},
		},
		{
			name: "warnings only",
			out: DoctorOutput{
				Checks:   []Check{{Name: "default voice", Status: CheckWarn, Detail: "missing"}},
				Warnings: 1,
			},
			stdout: []string{"(defaults, no talkgen.yaml found)", "- default voice: Skipped (missing)", "All required checks passed (1 warnings)"},
		},
		{
			name: "failures",
			out: DoctorOutput{
				Checks:   []Check{{Name: "checkpoint dir", Status: CheckFail, Detail: "not found"}},
				Failed:   1,
				Warnings: 2,
			},
			stdout: []string{"- checkpoint dir: Failed (not found)"},
			stderr: "Error: 1 checks failed, 2 warnings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := testutil.NewTestRendererMarkdown()
			renderDoctor(tr.Renderer, cfg, &tt.out)

			for _, want := range tt.stdout {
				assert.Contains(t, tr.Output(), want)
			}
			if tt.stderr != "" {
				assert.Contains(t, tr.ErrorOutput(), tt.stderr)
			}
			testutil.AssertValidMarkdown(t, tr.Output())
			testutil.AssertNoANSI(t, tr.Output()+tr.ErrorOutput())
		})
	}
}

func TestRenderDoctor_TextMode(t *testing.T) {
	tr := testutil.NewTestRendererText()
	out := DoctorOutput{Checks: []Check{
		{Name: "python", Status: CheckOK, Detail: "Python 3.10"},
		{Name: "wav2vec dir", Status: CheckFail, Detail: "not found"},
	}, Failed: 1}

	renderDoctor(tr.Renderer, &config.Config{GeneratorDir: "."}, &out)

	assert.Contains(t, tr.Output(), "✓ python Python 3.10")
	assert.Contains(t, tr.Output(), "✗ wav2vec dir not found")
	testutil.AssertNoANSI(t, tr.Output())

	tr.Reset()
	assert.Empty(t, tr.Output())
}
