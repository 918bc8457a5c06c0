package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/co-wx/internal/weather"
)

func TestPrintRaw(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := printRaw(cmd, []weather.FetchResult{
		{Station: "KTTA", Raw: "KTTA 031530Z 04008KT 10SM CLR 07/M02"},
		{Station: "ZZZZ", Err: weather.ErrNoObservation},
	})
	require.Error(t, err)
	assert.Equal(t, "1 of 2 stations could not be fetched", err.Error())
	assert.Equal(t, "KTTA 031530Z 04008KT 10SM CLR 07/M02\n", out.String())
	assert.Contains(t, errOut.String(), "ZZZZ: ")
}
