package segment

// PID identifies the patient.
type PID struct {
	PatientID             string     `json:"patientId,omitempty"`
	PatientIdentifierList string     `json:"patientIdentifierList,omitempty"`
	PatientName           PersonName `json:"patientName"`
	DateTimeOfBirth       string     `json:"dateTimeOfBirth,omitempty"`
	AdministrativeSex     string     `json:"administrativeSex,omitempty"`
}

var pidSchema = &Schema[PID]{
	Tag:   TagPID,
	Width: 40,
	Fields: []Field[PID]{
		Literal[PID](1, "1"),
		Text(2, "PatientID", func(p *PID) *string { return &p.PatientID }).WithDefault(digits(6)),
		Text(3, "PatientIdentifierList", func(p *PID) *string { return &p.PatientIdentifierList }),
		Fixed(5, "PatientName", 6, func(p *PID) Composite { return &p.PatientName }),
		Text(7, "DateTimeOfBirth", func(p *PID) *string { return &p.DateTimeOfBirth }),
		Text(8, "AdministrativeSex", func(p *PID) *string { return &p.AdministrativeSex }),
	},
}

func (*PID) Tag() string      { return TagPID }
func (p *PID) Encode() string { return pidSchema.Encode(p) }

// PV1 carries the inpatient visit.
type PV1 struct {
	AssignedPatientLocation Location `json:"assignedPatientLocation"`
	AdmitDateTime           string   `json:"admitDateTime,omitempty"`
}

var pv1Schema = &Schema[PV1]{
	Tag:   TagPV1,
	Width: 53,
	Fields: []Field[PV1]{
		Literal[PV1](1, "1"),
		Literal[PV1](2, "I"),
		Fixed(3, "AssignedPatientLocation", 7, func(p *PV1) Composite { return &p.AssignedPatientLocation }),
		Text(44, "AdmitDateTime", func(p *PV1) *string { return &p.AdmitDateTime }),
	},
}

func (*PV1) Tag() string      { return TagPV1 }
func (p *PV1) Encode() string { return pv1Schema.Encode(p) }
