package iecstack

// TriggerOptions are the trigger-option bits shared by Report and Log
// control blocks, per spec.md §4.7's control block table.
type TriggerOptions struct {
	DataChange     bool
	QualityChange  bool
	DataUpdate     bool
	IntegrityCheck bool
}

// ReportOptionFields are the optional-field bits of a ReportControlBlock.
type ReportOptionFields struct {
	SeqNum            bool
	TimeStamp         bool
	DataSet           bool
	ReasonForInclusion bool
	ConfigRevision    bool
	BufferOverflow    bool
	DataReference     bool
	EntryID           bool
}

// ReportControlBlock models an RCB, per spec.md §3 and §4.7.
type ReportControlBlock struct {
	Name         string
	RptID        string
	DataSet      string
	Buffered     bool
	ConfRev      int64
	BufTime      int64
	IntgPd       int64
	Trigger      TriggerOptions
	OptionFields ReportOptionFields
}

// PhyAddress is the network/link address attached to a GSE or SV control
// block by the top-level "communication" map, per spec.md §4.7.
type PhyAddress struct {
	MACAddress   string // 12 hex nibbles
	AppID        uint32
	VLANPriority int
	VLANID       uint32
}

// GSEControlBlock models a GOOSE control block (GoCB), per spec.md §3
// and §4.7.
type GSEControlBlock struct {
	Name        string
	AppID       string // gocbname
	DataSet     string
	ConfRev     int64
	FixedOffs   bool
	MinTime     int64
	MaxTime     int64
	PhyAddr     *PhyAddress
}

// SVSampleMode is the smpmod vocabulary for sampled-values control
// blocks, per spec.md §4.7.
type SVSampleMode int

const (
	SmpPerPeriod SVSampleMode = iota
	SmpPerSec
	SecPerSample
)

// SVOptionFields are the optional-field bits of an SVControlBlock.
type SVOptionFields struct {
	SampleSync bool
	SampleRate bool
	Security   bool
	DataSet    bool
	RefreshTime bool
}

// SVControlBlock models a sampled-values control block (MsvCB), per
// spec.md §3 and §4.7.
type SVControlBlock struct {
	Name         string
	SmvID        string // smvcbname
	DataSet      string
	ConfRev      int64
	SmpMod       SVSampleMode
	SmpRate      int64
	Unicast      bool
	OptionFields SVOptionFields
	PhyAddr      *PhyAddress
}

// LogControlBlock models an LCB, per spec.md §3 and §4.7.
type LogControlBlock struct {
	Name           string
	DataSet        string
	LogName        string
	LogEnabled     bool
	IntgPd         int64
	WithReasonCode bool
	Trigger        TriggerOptions
}

// Log is the log object an LCB writes into. Distinct control blocks that
// reference the same logname share one Log, per spec.md §4.7.
type Log struct {
	Name string
}

// SettingGroupControlBlock models the single setting-group control block
// honored on LLN0, per spec.md §4.7.
type SettingGroupControlBlock struct {
	ActSG    int
	NumOfSGs int
}
