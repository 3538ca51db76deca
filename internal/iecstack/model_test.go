package iecstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSimpleModel() *IedModel {
	model := NewIedModel("IED_A")
	ld := model.AddLogicalDevice("PROT")
	ln := ld.AddLogicalNode("XCBR1")
	do := ln.AddDataObject("Pos")
	da := &DataAttribute{Name: "stVal", Type: TypeBoolean, FC: ST}
	da.Set(MmsValue{Type: TypeBoolean, Value: false})
	do.AddChild(da)
	return model
}

func TestResolveNode(t *testing.T) {
	model := buildSimpleModel()

	node, err := ResolveNode(model, "PROT/XCBR1.Pos.stVal")
	require.NoError(t, err)
	da, ok := node.(*DataAttribute)
	require.True(t, ok)
	assert.Equal(t, "stVal", da.Name)
	assert.Equal(t, false, da.Get().Value)
}

func TestResolveNodeMissing(t *testing.T) {
	model := buildSimpleModel()

	_, err := ResolveNode(model, "PROT/XCBR1.Pos.missing")
	require.Error(t, err)

	_, err = ResolveNode(model, "NOPE/XCBR1.Pos.stVal")
	require.Error(t, err)

	_, err = ResolveNode(model, "malformed-reference")
	require.Error(t, err)
}

func TestParseDataTypeAndFC(t *testing.T) {
	assert.Equal(t, TypeBoolean, ParseDataType("boolean"))
	assert.Equal(t, TypeBoolean, ParseDataType("BOOL"))
	assert.Equal(t, TypeVisString32, ParseDataType("VisString32"))
	assert.Equal(t, TypeVisString255, ParseDataType("unknown-type"))

	assert.Equal(t, MX, ParseFC("mx"))
	assert.Equal(t, ST, ParseFC("unknown"))
}

func TestParseControlModel(t *testing.T) {
	cm, ok := ParseControlModel("sbo-with-enhanced-security")
	require.True(t, ok)
	assert.Equal(t, ControlModelSBOEnhanced, cm)

	_, ok = ParseControlModel("nonsense")
	assert.False(t, ok)
}
