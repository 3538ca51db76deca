// Package iecstack is the pure-Go stand-in for the external IEC 61850
// stack spec.md §6.3 describes as an assumed-available library. Since
// this daemon *simulates* IEDs instead of driving real hardware, and
// there is no publishable pure-Go MMS/GOOSE/SV stack in the example pack
// (the pack's only IEC 61850 library, marrasen-iec61850, is a cgo binding
// to libiec61850 and exposes a client, not a simulatable server+client
// pair), this package implements the §6.3 contract entirely in memory:
// model construction, server lifecycle with a connection-indication
// callback, typed attribute read/update, client sessions with FC-ordered
// read/write, and directory enumeration — all without cgo.
//
// Its vocabulary (FC names, data types, the ctlModel 0..4 mapping) is
// grounded on marrasen-iec61850's types.go and data_model.go so that a
// reference string or a type name means the same thing here as it does
// in the real stack.
package iecstack

import "strings"

// FC is a Functional Constraint, per spec.md GLOSSARY.
type FC int

const (
	ST FC = iota
	MX
	SP
	SV
	CF
	DC
	SG
	SE
	SR
	OR
	BL
	EX
	CO
)

var fcNames = map[FC]string{
	ST: "ST", MX: "MX", SP: "SP", SV: "SV", CF: "CF", DC: "DC",
	SG: "SG", SE: "SE", SR: "SR", OR: "OR", BL: "BL", EX: "EX", CO: "CO",
}

var fcByName = func() map[string]FC {
	m := make(map[string]FC, len(fcNames))
	for fc, name := range fcNames {
		m[name] = fc
	}
	return m
}()

func (f FC) String() string {
	if name, ok := fcNames[f]; ok {
		return name
	}
	return "ST"
}

// ParseFC maps a case-insensitive FC name to its FC value, defaulting to
// ST for anything unrecognized, per spec.md §4.7's FC mapping table.
func ParseFC(name string) FC {
	if fc, ok := fcByName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return fc
	}
	return ST
}

// DataType is the declared type of a DataAttribute leaf, per spec.md
// §4.7's type mapping table.
type DataType int

const (
	TypeVisString255 DataType = iota
	TypeBoolean
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint24
	TypeUint32
	TypeFloat32
	TypeFloat64
	TypeEnum
	TypeVisString32
	TypeVisString64
	TypeVisString129
	TypeUnicodeString255
	TypeOctetString64
	TypeQuality
	TypeTimestamp
	TypeCheck
	TypeConstructed
)

var typeByName = map[string]DataType{
	"BOOLEAN": TypeBoolean, "BOOL": TypeBoolean,
	"INT8": TypeInt8, "INT16": TypeInt16, "INT32": TypeInt32, "INT64": TypeInt64,
	"INT8U": TypeUint8, "INT16U": TypeUint16, "INT24U": TypeUint24, "INT32U": TypeUint32,
	"FLOAT32": TypeFloat32, "FLOAT64": TypeFloat64,
	"ENUM": TypeEnum, "ENUMERATED": TypeEnum,
	"VIS_STRING_32": TypeVisString32, "VISSTRING32": TypeVisString32,
	"VIS_STRING_64": TypeVisString64, "VISSTRING64": TypeVisString64,
	"VIS_STRING_129": TypeVisString129, "VISSTRING129": TypeVisString129,
	"VIS_STRING_255": TypeVisString255, "VISSTRING255": TypeVisString255,
	"UNICODE_STRING_255": TypeUnicodeString255, "UNICODESTRING255": TypeUnicodeString255,
	"OCTET_STRING_64": TypeOctetString64, "OCTETSTRING64": TypeOctetString64,
	"QUALITY":   TypeQuality,
	"TIMESTAMP": TypeTimestamp,
	"CHECK":     TypeCheck,
	"STRUCT":    TypeConstructed, "STRUCTURE": TypeConstructed,
}

// ParseDataType maps a case-insensitive, spelling-tolerant type name
// (accepting both "VIS_STRING_32" and "VisString32" style spellings) to
// a DataType, defaulting to VisString255 for anything unrecognized, per
// spec.md §4.7's type mapping table.
func ParseDataType(name string) DataType {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	if dt, ok := typeByName[normalized]; ok {
		return dt
	}
	return TypeVisString255
}

// ControlModel is the ctlModel vocabulary used by SettingGroup/control
// blocks. Values 0..4 match marrasen-iec61850/types.go's ControlModel
// enum, which spec.md §4.7 requires for ENUMERATED ctlModel coercion.
type ControlModel int

const (
	ControlModelStatusOnly ControlModel = iota
	ControlModelDirectNormal
	ControlModelSBONormal
	ControlModelDirectEnhanced
	ControlModelSBOEnhanced
)

var controlModelByName = map[string]ControlModel{
	"status-only":                    ControlModelStatusOnly,
	"direct-with-normal-security":    ControlModelDirectNormal,
	"sbo-with-normal-security":       ControlModelSBONormal,
	"direct-with-enhanced-security":  ControlModelDirectEnhanced,
	"sbo-with-enhanced-security":     ControlModelSBOEnhanced,
}

// ParseControlModel resolves the five-name ctlModel vocabulary to its
// numeric value, and reports whether name matched.
func ParseControlModel(name string) (ControlModel, bool) {
	cm, ok := controlModelByName[name]
	return cm, ok
}

// MmsValue is a typed attribute value, mirroring marrasen-iec61850's
// MmsValue{Type, Value} shape.
type MmsValue struct {
	Type  DataType
	Value any
}
