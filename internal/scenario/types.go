package scenario

// TransactionType is one of the fixed DMV processes a form document is
// filed under. It selects the mounted sections and the printed forms.
type TransactionType string

const (
	SimpleTransfer         TransactionType = "Simple Transfer"
	MultipleTransfer       TransactionType = "Multiple Transfer"
	InheritanceTransfer    TransactionType = "Inheritance Transfer"
	OutOfStateTransfer     TransactionType = "Out of State Transfer"
	DuplicateTitleTransfer TransactionType = "Duplicate Title Transfer"
	DuplicateRegistration  TransactionType = "Duplicate Registration"
	DuplicateStickers      TransactionType = "Duplicate Stickers"
	DuplicatePlates        TransactionType = "Duplicate Plates"
	LienHolderAddition     TransactionType = "Lien Holder Addition"
	LienHolderRemoval      TransactionType = "Lien Holder Removal"
	SalvageTransfer        TransactionType = "Salvage Transfer"
	NonrepairableVehicle   TransactionType = "Nonrepairable Vehicle"
	PlannedNonOperation    TransactionType = "Planned Non-Operation"
	CommercialVehicle      TransactionType = "Commercial Vehicle Registration"
	NameChange             TransactionType = "Name Change"
)

// TransactionTypes lists every known type in a stable order.
var TransactionTypes = []TransactionType{
	SimpleTransfer, MultipleTransfer, InheritanceTransfer, OutOfStateTransfer,
	DuplicateTitleTransfer, DuplicateRegistration, DuplicateStickers, DuplicatePlates,
	LienHolderAddition, LienHolderRemoval, SalvageTransfer, NonrepairableVehicle,
	PlannedNonOperation, CommercialVehicle, NameChange,
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}
