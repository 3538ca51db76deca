// Package model implements the dynamic IED model builder (C7): it
// translates the MessagePack "model" map described in spec.md §6.1 into
// a live internal/iecstack model tree plus data sets and control
// blocks, per the algorithm in spec.md §4.7.
package model

import (
	"strings"

	"github.com/vuuvv/errors"

	"github.com/Tachiguishi/iec61850-simulator/internal/iecstack"
	"github.com/Tachiguishi/iec61850-simulator/internal/wire"
)

// builder carries the bits of state the algorithm in spec.md §4.7
// threads across its recursive steps: the model under construction and
// the control-block lookup table step 4 (communication) needs to
// attach PHY addresses by "<ld_name>/<cb_name>" key.
type builder struct {
	gseBlocks map[string]*iecstack.GSEControlBlock
	svBlocks  map[string]*iecstack.SVControlBlock
}

// Build constructs a live model tree from modelPayload, the decoded
// "model" map of server.load_model's request payload.
func Build(modelPayload map[string]any) (*iecstack.IedModel, error) {
	b := &builder{
		gseBlocks: make(map[string]*iecstack.GSEControlBlock),
		svBlocks:  make(map[string]*iecstack.SVControlBlock),
	}

	name := wire.AsString(lookup(modelPayload, "name"), "IED")
	iedModel := iecstack.NewIedModel(name)

	if lds, ok := wire.AsMap(lookup(modelPayload, "logical_devices")); ok {
		for ldName, ldRaw := range lds {
			ldObj, _ := wire.AsMap(ldRaw)
			ld := iedModel.AddLogicalDevice(ldName)
			if lns, ok := wire.AsMap(lookup(ldObj, "logical_nodes")); ok {
				for lnName, lnRaw := range lns {
					lnObj, _ := wire.AsMap(lnRaw)
					if err := b.buildLogicalNode(ld, ldName, lnName, lnObj); err != nil {
						return nil, errors.Wrapf(err, "logical device %q, logical node %q", ldName, lnName)
					}
				}
			}
		}
	}

	if comm, ok := wire.AsMap(lookup(modelPayload, "communication")); ok {
		b.attachCommunication(comm)
	}

	return iedModel, nil
}

func (b *builder) buildLogicalNode(ld *iecstack.LogicalDevice, ldName, lnName string, lnObj map[string]any) error {
	ln := ld.AddLogicalNode(lnName)

	if dos, ok := wire.AsMap(lookup(lnObj, "data_objects")); ok {
		for doName, doRaw := range dos {
			doObj, _ := wire.AsMap(doRaw)
			if _, hasCDC := wire.FindKey(doObj, "cdc"); hasCDC {
				do := ln.AddDataObject(doName)
				createDataObjectRecursive(do, doObj)
			} else {
				da := createAttributeRecursive(doName, doObj)
				ln.AddDataObject(doName).AddChild(da)
			}
		}
	}

	if dataSets, ok := wire.AsMap(lookup(lnObj, "data_sets")); ok {
		for key, dsRaw := range dataSets {
			dsObj, _ := wire.AsMap(dsRaw)
			name := wire.AsString(lookup(dsObj, "name"), key)
			ds := ln.AddDataSet(name)
			if entries, ok := wire.AsStringSlice(lookup(dsObj, "fcdas")); ok {
				for _, ref := range entries {
					ds.AddEntry(ref)
				}
			}
		}
	}

	if reportControls, ok := wire.AsMap(lookup(lnObj, "report_controls")); ok {
		for key, rcRaw := range reportControls {
			rcObj, _ := wire.AsMap(rcRaw)
			ln.ReportControls = append(ln.ReportControls, buildReportControl(key, rcObj))
		}
	}

	if gseControls, ok := wire.AsMap(lookup(lnObj, "gse_controls")); ok {
		for key, gcRaw := range gseControls {
			gcObj, _ := wire.AsMap(gcRaw)
			cb := buildGSEControl(key, gcObj)
			ln.GSEControls = append(ln.GSEControls, cb)
			b.gseBlocks[ldName+"/"+cb.Name] = cb
		}
	}

	if smvControls, ok := wire.AsMap(lookup(lnObj, "smv_controls")); ok {
		for key, scRaw := range smvControls {
			scObj, _ := wire.AsMap(scRaw)
			cb := buildSVControl(key, scObj)
			ln.SVControls = append(ln.SVControls, cb)
			b.svBlocks[ldName+"/"+cb.Name] = cb
		}
	}

	if logControls, ok := wire.AsMap(lookup(lnObj, "log_controls")); ok {
		for key, lcRaw := range logControls {
			lcObj, _ := wire.AsMap(lcRaw)
			lc := buildLogControl(key, lcObj)
			ln.LogControls = append(ln.LogControls, lc)
			if lc.LogName != "" {
				ln.EnsureLog(lc.LogName)
			}
		}
	}

	if strings.EqualFold(lnName, "LLN0") {
		if sgObj, ok := wire.AsMap(lookup(lnObj, "setting_group_control")); ok {
			ln.SettingGroup = &iecstack.SettingGroupControlBlock{
				ActSG:    int(wire.AsInt64(lookup(sgObj, "act_sg"), 1)),
				NumOfSGs: int(wire.AsInt64(lookup(sgObj, "num_of_sgs"), 1)),
			}
		}
	}

	return nil
}

// createDataObjectRecursive builds a nested data object (§4.7 step 3's
// "cdc" branch): its children are themselves data objects or attributes,
// dispatched the same way as the top-level data_objects map.
func createDataObjectRecursive(do *iecstack.DataObject, doObj map[string]any) {
	attrs, ok := wire.AsMap(lookup(doObj, "attributes"))
	if !ok {
		return
	}
	for name, childRaw := range attrs {
		childObj, _ := wire.AsMap(childRaw)
		if _, hasCDC := wire.FindKey(childObj, "cdc"); hasCDC {
			child := &iecstack.DataObject{Name: name, Children: make(map[string]iecstack.Node)}
			createDataObjectRecursive(child, childObj)
			do.AddChild(child)
		} else {
			do.AddChild(createAttributeRecursive(name, childObj))
		}
	}
}

// createAttributeRecursive implements spec.md §4.7's
// create_attribute_recursive: reads type/fc, and either recurses into a
// CONSTRUCTED attribute's sub-attributes or attaches a leaf value.
func createAttributeRecursive(name string, obj map[string]any) *iecstack.DataAttribute {
	fc := iecstack.ParseFC(wire.AsString(lookup(obj, "fc"), "ST"))

	if children, ok := wire.AsMap(lookup(obj, "attributes")); ok {
		da := &iecstack.DataAttribute{Name: name, Type: iecstack.TypeConstructed, FC: fc}
		for childName, childRaw := range children {
			childObj, _ := wire.AsMap(childRaw)
			da.AddChild(createAttributeRecursive(childName, childObj))
		}
		return da
	}

	dt := iecstack.ParseDataType(wire.AsString(lookup(obj, "type"), "VIS_STRING_255"))
	da := &iecstack.DataAttribute{Name: name, Type: dt, FC: fc}

	if raw, present := wire.FindKey(obj, "value"); present && raw != nil {
		if mv, ok := coerceValue(dt, raw); ok {
			da.Set(mv)
		}
	}
	return da
}

func buildReportControl(key string, obj map[string]any) *iecstack.ReportControlBlock {
	return &iecstack.ReportControlBlock{
		Name:     wire.AsString(lookup(obj, "name"), key),
		RptID:    wire.AsString(lookup(obj, "rptid"), ""),
		DataSet:  wire.AsString(lookup(obj, "dataset"), ""),
		Buffered: coerceBool(lookup(obj, "buffered")),
		ConfRev:  firstInt64(obj, "conf_rev", "confRev"),
		BufTime:  wire.AsInt64(lookup(obj, "buf_time"), 0),
		IntgPd:   wire.AsInt64(lookup(obj, "intg_pd"), 0),
		Trigger: iecstack.TriggerOptions{
			DataChange:     coerceBool(lookup(obj, "dataChange")),
			QualityChange:  coerceBool(lookup(obj, "qualityChange")),
			DataUpdate:     coerceBool(lookup(obj, "dataUpdate")),
			IntegrityCheck: coerceBool(lookup(obj, "integrityCheck")),
		},
		OptionFields: iecstack.ReportOptionFields{
			SeqNum:             coerceBool(lookup(obj, "seqNum")),
			TimeStamp:          coerceBool(lookup(obj, "timeStamp")),
			DataSet:            coerceBool(lookup(obj, "dataSet")),
			ReasonForInclusion: coerceBool(lookup(obj, "reasonForInclusion")),
			ConfigRevision:     coerceBool(lookup(obj, "configRevision")),
			BufferOverflow:     coerceBool(lookup(obj, "bufferOverflow")),
			DataReference:      coerceBool(lookup(obj, "dataReference")),
			EntryID:            coerceBool(lookup(obj, "entryId")),
		},
	}
}

func buildGSEControl(key string, obj map[string]any) *iecstack.GSEControlBlock {
	return &iecstack.GSEControlBlock{
		Name:      wire.AsString(lookup(obj, "name"), key),
		AppID:     wire.AsString(lookup(obj, "gocbname"), ""),
		DataSet:   wire.AsString(lookup(obj, "dataset"), ""),
		ConfRev:   wire.AsInt64(lookup(obj, "conf_rev"), 0),
		FixedOffs: firstBool(obj, "fixedOffs", "fixed_offsets"),
		MinTime:   wire.AsInt64(lookup(obj, "min_time"), 0),
		MaxTime:   firstInt64(obj, "max_time", "time_allowed_to_live"),
	}
}

func buildSVControl(key string, obj map[string]any) *iecstack.SVControlBlock {
	return &iecstack.SVControlBlock{
		Name:    wire.AsString(lookup(obj, "name"), key),
		SmvID:   wire.AsString(lookup(obj, "smvcbname"), ""),
		DataSet: wire.AsString(lookup(obj, "dataset"), ""),
		ConfRev: wire.AsInt64(lookup(obj, "conf_rev"), 0),
		SmpMod:  parseSampleMode(wire.AsString(lookup(obj, "smpmod"), "SmpPerPeriod")),
		SmpRate: wire.AsInt64(lookup(obj, "smprate"), 0),
		Unicast: firstBool(obj, "unicast", "is_unicast"),
		OptionFields: iecstack.SVOptionFields{
			SampleSync:  coerceBool(lookup(obj, "sampleSync")),
			SampleRate:  coerceBool(lookup(obj, "sampleRate")),
			Security:    coerceBool(lookup(obj, "security")),
			DataSet:     coerceBool(lookup(obj, "dataSet")),
			RefreshTime: coerceBool(lookup(obj, "refreshTime")),
		},
	}
}

func parseSampleMode(s string) iecstack.SVSampleMode {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SMPPERSEC":
		return iecstack.SmpPerSec
	case "SECPERSAMPLE":
		return iecstack.SecPerSample
	default:
		return iecstack.SmpPerPeriod
	}
}

func buildLogControl(key string, obj map[string]any) *iecstack.LogControlBlock {
	return &iecstack.LogControlBlock{
		Name:           wire.AsString(lookup(obj, "name"), key),
		DataSet:        wire.AsString(lookup(obj, "dataset"), ""),
		LogName:        wire.AsString(lookup(obj, "logname"), ""),
		LogEnabled:     coerceBool(lookup(obj, "log_ena")),
		IntgPd:         wire.AsInt64(lookup(obj, "intg_pd"), 0),
		WithReasonCode: coerceBool(lookup(obj, "reasonForInclusion")),
		Trigger: iecstack.TriggerOptions{
			DataChange:     coerceBool(lookup(obj, "dataChange")),
			QualityChange:  coerceBool(lookup(obj, "qualityChange")),
			DataUpdate:     coerceBool(lookup(obj, "dataUpdate")),
			IntegrityCheck: coerceBool(lookup(obj, "integrityCheck")),
		},
	}
}

// attachCommunication implements spec.md §4.7 step 4: for every access
// point's gse_addresses/smv_addresses entry whose key matches a
// previously built control block by "<ld_name>/<cb_name>", parse and
// attach its PHY address.
func (b *builder) attachCommunication(comm map[string]any) {
	for _, apRaw := range comm {
		apObj, ok := wire.AsMap(apRaw)
		if !ok {
			continue
		}
		if gseAddrs, ok := wire.AsMap(lookup(apObj, "gse_addresses")); ok {
			for key, addrRaw := range gseAddrs {
				if cb, ok := b.gseBlocks[key]; ok {
					addrObj, _ := wire.AsMap(addrRaw)
					cb.PhyAddr = parsePhyAddress(addrObj)
				}
			}
		}
		if smvAddrs, ok := wire.AsMap(lookup(apObj, "smv_addresses")); ok {
			for key, addrRaw := range smvAddrs {
				if cb, ok := b.svBlocks[key]; ok {
					addrObj, _ := wire.AsMap(addrRaw)
					cb.PhyAddr = parsePhyAddress(addrObj)
				}
			}
		}
	}
}

func parsePhyAddress(obj map[string]any) *iecstack.PhyAddress {
	appID, _ := parseHexDefaultUint32(wire.AsString(lookup(obj, "appid"), "0"))
	vlanID, _ := parseAutoBaseUint32(wire.AsString(lookup(obj, "vlan_id"), "0"))
	return &iecstack.PhyAddress{
		MACAddress:   parseMAC(wire.AsString(lookup(obj, "mac_address"), "")),
		AppID:        appID,
		VLANPriority: int(wire.AsInt64(lookup(obj, "vlan_priority"), 0)),
		VLANID:       vlanID,
	}
}

func lookup(obj map[string]any, key string) any {
	v, _ := wire.FindKey(obj, key)
	return v
}

func firstBool(obj map[string]any, primary, alias string) bool {
	if v, ok := wire.FindKey(obj, primary); ok {
		return coerceBool(v)
	}
	return coerceBool(lookup(obj, alias))
}

func firstInt64(obj map[string]any, primary, alias string) int64 {
	if v, ok := wire.FindKey(obj, primary); ok {
		return wire.AsInt64(v, 0)
	}
	return wire.AsInt64(lookup(obj, alias), 0)
}
