package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"serve", "classify", "hash-key"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, ".", flag.DefValue)
}

func TestClassify(t *testing.T) {
	out, err := execute(t, "classify", "flux", "2e-5")
	require.NoError(t, err)
	assert.Equal(t, "flux 2e-05: M (critical)\n", out)

	out, err = execute(t, "classify", "kp", "9", "--json")
	require.NoError(t, err)
	var tier struct {
		Metric string  `json:"metric"`
		Label  string  `json:"label"`
		Value  float64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &tier))
	assert.Equal(t, "kp", tier.Metric)
	assert.Equal(t, "extreme", tier.Label)
	assert.Equal(t, 9.0, tier.Value)
}

func TestClassifyRejectsBadInput(t *testing.T) {
	_, err := execute(t, "classify", "humidity", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric")

	_, err = execute(t, "classify", "wind", "fast")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid value")
}

func TestHashKey(t *testing.T) {
	out, err := execute(t, "hash-key", "judge-secret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("judge-secret")))

	_, err = execute(t, "hash-key", "")
	assert.Error(t, err)
}
