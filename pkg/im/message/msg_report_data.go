package message

// ReportDataMessage contains attribute data for one read or subscription.
type ReportDataMessage struct {
	SubscriptionID   *SubscriptionID     `cbor:"0,keyasint,omitempty"`
	AttributeReports []AttributeReportIB `cbor:"1,keyasint,omitempty"`
	SuppressResponse bool                `cbor:"4,keyasint,omitempty"`
}

// AddData appends an attribute data entry.
func (m *ReportDataMessage) AddData(data AttributeDataIB) {
	m.AttributeReports = append(m.AttributeReports, AttributeReportIB{AttributeData: &data})
}

// AddStatus appends an attribute status entry.
func (m *ReportDataMessage) AddStatus(path AttributePathIB, status Status) {
	m.AttributeReports = append(m.AttributeReports, AttributeReportIB{
		AttributeStatus: &AttributeStatusIB{Path: path, Status: StatusIB{Status: status}},
	})
}

// IsEmpty reports whether the message carries no attribute entries.
func (m *ReportDataMessage) IsEmpty() bool {
	return len(m.AttributeReports) == 0
}
