package sections

// Typed records, one per section. Field names follow the JSON keys the
// backend stores; unknown keys are rejected when a value is written into
// the form state store.

type Person struct {
	FirstName     string `json:"firstName,omitempty"`
	MiddleName    string `json:"middleName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	BusinessName  string `json:"businessName,omitempty"`
	LicenseNumber string `json:"licenseNumber,omitempty"`
	State         string `json:"state,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
}

type Address struct {
	Street  string `json:"street,omitempty"`
	Apt     string `json:"apt,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZIP     string `json:"zip,omitempty"`
	County  string `json:"county,omitempty"`
	POBox   string `json:"poBox,omitempty"`
	Country string `json:"country,omitempty"`
}

type Owner struct {
	Person
	PurchaseDate           string `json:"purchaseDate,omitempty"`
	PurchaseValue          string `json:"purchaseValue,omitempty"`
	MarketValue            string `json:"marketValue,omitempty"`
	IsGift                 bool   `json:"isGift,omitempty"`
	RelationshipWithGifter string `json:"relationshipWithGifter,omitempty"`
	OwnershipType          string `json:"ownershipType,omitempty"` // "and", "or", "jtwros"
}

type VehicleInformation struct {
	HullID          string `json:"hullId,omitempty"`
	Make            string `json:"make,omitempty"`
	Model           string `json:"model,omitempty"`
	Year            string `json:"year,omitempty"`
	BodyType        string `json:"bodyType,omitempty"`
	LicensePlateNum string `json:"licensePlateNum,omitempty"`
	Color           string `json:"color,omitempty"`
	Mileage         string `json:"mileage,omitempty"`
	IsMotorcycle    bool   `json:"isMotorcycle,omitempty"`
	EngineNumber    string `json:"engineNumber,omitempty"`
}

type VehicleTransactionDetails struct {
	CurrentLienholder  bool `json:"currentLienholder"`
	WithTitle          bool `json:"withTitle"`
	IsOutOfStateTitle  bool `json:"isOutOfStateTitle"`
	IsGift             bool `json:"isGift"`
	IsFamilyTransfer   bool `json:"isFamilyTransfer"`
	IsSmogExempt       bool `json:"isSmogExempt"`
	IsMotorcycle       bool `json:"isMotorcycle"`
	IsOnlyMotorcycle   bool `json:"isOnlyMotorcycle"`
	IsPNO              bool `json:"isPNO"`
	IsCommercial       bool `json:"isCommercial"`
	IsInheritance      bool `json:"isInheritance"`
	HasPowerOfAttorney bool `json:"hasPowerOfAttorney"`
	NewLienholder      bool `json:"newLienholder"`
	IsVessel           bool `json:"isVessel"`
}

type SellerInfo struct {
	Sellers  []Seller `json:"sellers,omitempty"`
	SaleDate string   `json:"saleDate,omitempty"`
}

type Seller struct {
	Person
	SignatureDate string `json:"signatureDate,omitempty"`
}

type LegalOwner struct {
	Name                string  `json:"name,omitempty"`
	Address             Address `json:"address,omitempty"`
	ReleaseDate         string  `json:"releaseDate,omitempty"`
	AuthorizedAgentName string  `json:"authorizedAgentName,omitempty"`
	PhoneNumber         string  `json:"phoneNumber,omitempty"`
}

type NewLienHolder struct {
	Name      string  `json:"name,omitempty"`
	Address   Address `json:"address,omitempty"`
	ELTNumber string  `json:"eltNumber,omitempty"`
}

type LicensePlateDisposition struct {
	PlateNumber     string `json:"plateNumber,omitempty"`
	Surrendered     bool   `json:"surrendered,omitempty"`
	Destroyed       bool   `json:"destroyed,omitempty"`
	Lost            bool   `json:"lost,omitempty"`
	Stolen          bool   `json:"stolen,omitempty"`
	RetainedByOwner bool   `json:"retainedByOwner,omitempty"`
}

type SalvageCertificate struct {
	InsuranceCompany string `json:"insuranceCompany,omitempty"`
	ClaimNumber      string `json:"claimNumber,omitempty"`
	DateOfLoss       string `json:"dateOfLoss,omitempty"`
	TotalLoss        bool   `json:"totalLoss,omitempty"`
	Nonrepairable    bool   `json:"nonrepairable,omitempty"`
	OwnerRetained    bool   `json:"ownerRetained,omitempty"`
}

type MissingTitle struct {
	Reason      string `json:"reason,omitempty"` // lost, stolen, notReceived, illegible, other
	Explanation string `json:"explanation,omitempty"`
}

type ReleaseOfOwnership struct {
	Name          string `json:"name,omitempty"`
	SignatoryName string `json:"signatoryName,omitempty"`
	ReleaseDate   string `json:"releaseDate,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
}

type DuplicateStickers struct {
	Month       bool   `json:"month,omitempty"`
	Year        bool   `json:"year,omitempty"`
	Reason      string `json:"reason,omitempty"`
	PlateNumber string `json:"plateNumber,omitempty"`
}

type DuplicatePlates struct {
	Reason      string `json:"reason,omitempty"`
	PlateNumber string `json:"plateNumber,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
}

type OdometerDisclosure struct {
	Reading       string `json:"reading,omitempty"`
	Unit          string `json:"unit,omitempty"` // miles, km
	ActualMileage bool   `json:"actualMileage,omitempty"`
	ExceedsLimits bool   `json:"exceedsLimits,omitempty"`
	NotActual     bool   `json:"notActual,omitempty"`
}

type SmogExemption struct {
	Reason string `json:"reason,omitempty"`
}

type PowerOfAttorney struct {
	Grantor string `json:"grantor,omitempty"`
	Grantee string `json:"grantee,omitempty"`
	Date    string `json:"date,omitempty"`
}

type StatementOfFacts struct {
	Statement string `json:"statement,omitempty"`
	Date      string `json:"date,omitempty"`
}

type PlannedNonOperation struct {
	EffectiveDate      string `json:"effectiveDate,omitempty"`
	ReinstateRequested bool   `json:"reinstateRequested,omitempty"`
}

type NameStatement struct {
	PreviousName string `json:"previousName,omitempty"`
	NewName      string `json:"newName,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type CommercialVehicle struct {
	UnladenWeight string `json:"unladenWeight,omitempty"`
	GrossWeight   string `json:"grossWeight,omitempty"`
	Axles         int    `json:"axles,omitempty"`
}

type OutOfStateTitle struct {
	State       string `json:"state,omitempty"`
	TitleNumber string `json:"titleNumber,omitempty"`
	IssueDate   string `json:"issueDate,omitempty"`
}

type Inheritance struct {
	DecedentName string `json:"decedentName,omitempty"`
	DateOfDeath  string `json:"dateOfDeath,omitempty"`
	Heirs        string `json:"heirs,omitempty"`
}
