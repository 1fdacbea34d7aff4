package segment

// ZPI carries site-specific dose timing details.
type ZPI struct {
	TimesPerDay           string       `json:"timesPerDay,omitempty"`
	PrescribedDate        string       `json:"prescribedDate,omitempty"`
	DispensePartialStatus string       `json:"dispensePartialStatus,omitempty"`
	OrderRequestID        CodedElement `json:"orderRequestId"`
	IsPRN                 string       `json:"isPrn,omitempty"`
	LinkedReorderNumber   string       `json:"linkedReorderNumber,omitempty"`
	ExplicitTime          string       `json:"explicitTime,omitempty"`
	StartDate             string       `json:"startDate,omitempty"`
	RxNumber              string       `json:"rxNumber,omitempty"`
}

var zpiSchema = &Schema[ZPI]{
	Tag:   TagZPI,
	Width: 35,
	Fields: []Field[ZPI]{
		Text(11, "TimesPerDay", func(z *ZPI) *string { return &z.TimesPerDay }),
		Text(12, "PrescribedDate", func(z *ZPI) *string { return &z.PrescribedDate }),
		Text(17, "DispensePartialStatus", func(z *ZPI) *string { return &z.DispensePartialStatus }),
		Coded(23, "OrderRequestID", func(z *ZPI) Composite { return &z.OrderRequestID }),
		Text(24, "IsPRN", func(z *ZPI) *string { return &z.IsPRN }),
		Text(25, "LinkedReorderNumber", func(z *ZPI) *string { return &z.LinkedReorderNumber }),
		Text(30, "ExplicitTime", func(z *ZPI) *string { return &z.ExplicitTime }),
		Text(33, "StartDate", func(z *ZPI) *string { return &z.StartDate }),
		Text(34, "RxNumber", func(z *ZPI) *string { return &z.RxNumber }).WithDefault(digits(5)),
	},
}

func (*ZPI) Tag() string      { return TagZPI }
func (z *ZPI) Encode() string { return zpiSchema.Encode(z) }

// ZQM carries administration metadata.
type ZQM struct {
	BarCode                 string `json:"barCode,omitempty"`
	VitalList               string `json:"vitalList,omitempty"`
	SelfAdminOrSlidingScale string `json:"selfAdminOrSlidingScale,omitempty"`
	BrandNameEquivalent     string `json:"brandNameEquivalent,omitempty"`
}

var zqmSchema = &Schema[ZQM]{
	Tag:   TagZQM,
	Width: 13,
	Fields: []Field[ZQM]{
		Text(3, "BarCode", func(z *ZQM) *string { return &z.BarCode }),
		Text(6, "VitalList", func(z *ZQM) *string { return &z.VitalList }),
		Text(9, "SelfAdminOrSlidingScale", func(z *ZQM) *string { return &z.SelfAdminOrSlidingScale }),
		Text(10, "BrandNameEquivalent", func(z *ZQM) *string { return &z.BrandNameEquivalent }),
	},
}

func (*ZQM) Tag() string      { return TagZQM }
func (z *ZQM) Encode() string { return zqmSchema.Encode(z) }

// ZRX carries pricing details.
type ZRX struct {
	DispenseCode               string `json:"dispenseCode,omitempty"`
	PatientChargeCode          string `json:"patientChargeCode,omitempty"`
	RetailPharmacyOriginalDate string `json:"retailPharmacyOriginalDate,omitempty"`
}

var zrxSchema = &Schema[ZRX]{
	Tag:   TagZRX,
	Width: 13,
	Fields: []Field[ZRX]{
		Text(1, "DispenseCode", func(z *ZRX) *string { return &z.DispenseCode }),
		Text(3, "PatientChargeCode", func(z *ZRX) *string { return &z.PatientChargeCode }),
		Text(4, "RetailPharmacyOriginalDate", func(z *ZRX) *string { return &z.RetailPharmacyOriginalDate }),
	},
}

func (*ZRX) Tag() string      { return TagZRX }
func (z *ZRX) Encode() string { return zrxSchema.Encode(z) }
