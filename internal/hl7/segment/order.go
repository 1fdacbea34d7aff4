package segment

import "github.com/drfirst/go-rxhl7/internal/hl7/provider"

// Placeholder values used when a dose segment is built without them.
// Downstream pharmacy systems reject an RXE missing either one.
const (
	DefaultGiveCodeText      = "Default RXE.2.2 medication name. Msg fails without this."
	DefaultAdminInstructions = "Default RXE.7 instructions. Msg fails without this."
)

// ORC is the common order segment.
type ORC struct {
	OrderControl          string         `json:"orderControl,omitempty"`
	FillerOrderNumber     string         `json:"fillerOrderNumber,omitempty"`
	PlacerGroupNumber     string         `json:"placerGroupNumber,omitempty"`
	OrderStatus           string         `json:"orderStatus,omitempty"`
	QuantityTiming        TimingQuantity `json:"quantityTiming"`
	DateTimeOfTransaction string         `json:"dateTimeOfTransaction,omitempty"`
	OrderingProvider      ProviderName   `json:"orderingProvider"`
	OrderStatusModifier   string         `json:"orderStatusModifier,omitempty"`
}

var orcSchema = &Schema[ORC]{
	Tag:   TagORC,
	Width: 31,
	Fields: []Field[ORC]{
		Text(1, "OrderControl", func(o *ORC) *string { return &o.OrderControl }),
		Text(3, "FillerOrderNumber", func(o *ORC) *string { return &o.FillerOrderNumber }),
		Text(4, "PlacerGroupNumber", func(o *ORC) *string { return &o.PlacerGroupNumber }),
		Text(5, "OrderStatus", func(o *ORC) *string { return &o.OrderStatus }),
		Coded(7, "QuantityTiming", func(o *ORC) Composite { return &o.QuantityTiming }),
		Text(9, "DateTimeOfTransaction", func(o *ORC) *string { return &o.DateTimeOfTransaction }),
		Coded(12, "OrderingProvider", func(o *ORC) Composite { return &o.OrderingProvider }),
		Text(25, "OrderStatusModifier", func(o *ORC) *string { return &o.OrderStatusModifier }),
	},
}

func (*ORC) Tag() string      { return TagORC }
func (o *ORC) Encode() string { return orcSchema.Encode(o) }

// RXO is the pharmacy order as requested.
type RXO struct {
	RequestedGiveCode CodedElement `json:"requestedGiveCode"`
	Indication        CodedElement `json:"indication"`
}

var rxoSchema = &Schema[RXO]{
	Tag:   TagRXO,
	Width: 29,
	Fields: []Field[RXO]{
		Coded(1, "RequestedGiveCode", func(r *RXO) Composite { return &r.RequestedGiveCode }),
		Coded(20, "Indication", func(r *RXO) Composite { return &r.Indication }),
	},
}

func (*RXO) Tag() string      { return TagRXO }
func (r *RXO) Encode() string { return rxoSchema.Encode(r) }

// RXE is the pharmacy encoded order, the dose segment of the message.
type RXE struct {
	GiveCode                    CodedElement `json:"giveCode"`
	GiveAmountMinimum           string       `json:"giveAmountMinimum,omitempty"`
	GiveUnits                   string       `json:"giveUnits,omitempty"`
	GiveDosageForm              string       `json:"giveDosageForm,omitempty"`
	AdministrationInstructions  string       `json:"administrationInstructions,omitempty"`
	DispenseAmount              string       `json:"dispenseAmount,omitempty"`
	PrescriptionNumber          string       `json:"prescriptionNumber,omitempty"`
	GiveStrength                string       `json:"giveStrength,omitempty"`
	GiveStrengthUnits           string       `json:"giveStrengthUnits,omitempty"`
	GiveIndication              CodedElement `json:"giveIndication"`
	ControlledSubstanceSchedule string       `json:"controlledSubstanceSchedule,omitempty"`
}

var rxeSchema = &Schema[RXE]{
	Tag:   TagRXE,
	Width: 45,
	Fields: []Field[RXE]{
		Fixed(2, "GiveCode", 3, func(r *RXE) Composite { return &r.GiveCode }).WithDefault(defaultGiveCode),
		Text(3, "GiveAmountMinimum", func(r *RXE) *string { return &r.GiveAmountMinimum }),
		Text(5, "GiveUnits", func(r *RXE) *string { return &r.GiveUnits }),
		Text(6, "GiveDosageForm", func(r *RXE) *string { return &r.GiveDosageForm }),
		Component(7, "AdministrationInstructions", 1, 2, func(r *RXE) *string { return &r.AdministrationInstructions }).
			WithDefault(constant(DefaultAdminInstructions)),
		Text(10, "DispenseAmount", func(r *RXE) *string { return &r.DispenseAmount }),
		Text(15, "PrescriptionNumber", func(r *RXE) *string { return &r.PrescriptionNumber }).WithDefault(digits(5)),
		Text(25, "GiveStrength", func(r *RXE) *string { return &r.GiveStrength }),
		Text(26, "GiveStrengthUnits", func(r *RXE) *string { return &r.GiveStrengthUnits }),
		Coded(27, "GiveIndication", func(r *RXE) Composite { return &r.GiveIndication }),
		Text(35, "ControlledSubstanceSchedule", func(r *RXE) *string { return &r.ControlledSubstanceSchedule }),
	},
}

func defaultGiveCode(src provider.Source) string {
	ce := CodedElement{Identifier: src.Numeric(11), Text: DefaultGiveCodeText}
	return ce.Encode()
}

func (*RXE) Tag() string      { return TagRXE }
func (r *RXE) Encode() string { return rxeSchema.Encode(r) }

// RXR is the pharmacy route.
type RXR struct {
	Route CodedElement `json:"route"`
}

var rxrSchema = &Schema[RXR]{
	Tag:   TagRXR,
	Width: 7,
	Fields: []Field[RXR]{
		Coded(1, "Route", func(r *RXR) Composite { return &r.Route }),
	},
}

func (*RXR) Tag() string      { return TagRXR }
func (r *RXR) Encode() string { return rxrSchema.Encode(r) }

// RXD is the pharmacy dispense segment.
type RXD struct {
	DispenseSubIDCounter string       `json:"dispenseSubIdCounter,omitempty"`
	DispenseGiveCode     CodedElement `json:"dispenseGiveCode"`
	DateTimeDispensed    string       `json:"dateTimeDispensed,omitempty"`
	ActualDispenseAmount string       `json:"actualDispenseAmount,omitempty"`
	ActualDispenseUnits  string       `json:"actualDispenseUnits,omitempty"`
	PrescriptionNumber   string       `json:"prescriptionNumber,omitempty"`
}

var rxdSchema = &Schema[RXD]{
	Tag:   TagRXD,
	Width: 34,
	Fields: []Field[RXD]{
		Text(1, "DispenseSubIDCounter", func(r *RXD) *string { return &r.DispenseSubIDCounter }).Require(),
		Coded(2, "DispenseGiveCode", func(r *RXD) Composite { return &r.DispenseGiveCode }).Require(),
		Text(3, "DateTimeDispensed", func(r *RXD) *string { return &r.DateTimeDispensed }).WithDefault(now),
		Text(4, "ActualDispenseAmount", func(r *RXD) *string { return &r.ActualDispenseAmount }),
		Text(5, "ActualDispenseUnits", func(r *RXD) *string { return &r.ActualDispenseUnits }),
		Text(7, "PrescriptionNumber", func(r *RXD) *string { return &r.PrescriptionNumber }),
	},
}

func (*RXD) Tag() string      { return TagRXD }
func (r *RXD) Encode() string { return rxdSchema.Encode(r) }

// BuildRXD constructs a dispense segment from named values.
func BuildRXD(src provider.Source, values Values) (*RXD, error) {
	return rxdSchema.Build(src, values)
}
