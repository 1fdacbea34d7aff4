package segment

// TQ1 is one timing/quantity schedule. A message may carry several.
type TQ1 struct {
	SetID           string `json:"setId,omitempty"`
	Quantity        string `json:"quantity,omitempty"`
	RepeatPattern   string `json:"repeatPattern,omitempty"`
	ExplicitTime    string `json:"explicitTime,omitempty"`
	StartDateTime   string `json:"startDateTime,omitempty"`
	EndDateTime     string `json:"endDateTime,omitempty"`
	Priority        string `json:"priority,omitempty"`
	TextInstruction string `json:"textInstruction,omitempty"`
	Conjunction     string `json:"conjunction,omitempty"`
}

var tq1Schema = &Schema[TQ1]{
	Tag:   TagTQ1,
	Width: 15,
	Fields: []Field[TQ1]{
		Text(1, "SetID", func(q *TQ1) *string { return &q.SetID }).Require(),
		Text(2, "Quantity", func(q *TQ1) *string { return &q.Quantity }),
		Text(3, "RepeatPattern", func(q *TQ1) *string { return &q.RepeatPattern }),
		Text(4, "ExplicitTime", func(q *TQ1) *string { return &q.ExplicitTime }),
		Text(7, "StartDateTime", func(q *TQ1) *string { return &q.StartDateTime }),
		Text(8, "EndDateTime", func(q *TQ1) *string { return &q.EndDateTime }),
		Text(9, "Priority", func(q *TQ1) *string { return &q.Priority }),
		Text(11, "TextInstruction", func(q *TQ1) *string { return &q.TextInstruction }),
		Text(12, "Conjunction", func(q *TQ1) *string { return &q.Conjunction }),
	},
}

func (*TQ1) Tag() string      { return TagTQ1 }
func (q *TQ1) Encode() string { return tq1Schema.Encode(q) }
