package sections

import (
	"strconv"

	"github.com/formmatic/formmatic/internal/formdoc"
)

// Section names used by transaction compositions.
const (
	VehicleInformationSection        = "VehicleInformation"
	VehicleTransactionDetailsSection = "VehicleTransactionDetails"
	NewRegisteredOwnerSection        = "NewRegisteredOwner"
	AddressSection                   = "Address"
	MailingAddressSection            = "MailingAddress"
	SellerSection                    = "Seller"
	LegalOwnerOfRecordSection        = "LegalOwnerOfRecord"
	NewLienHolderSection             = "NewLienHolder"
	LicensePlateSection              = "LicensePlate"
	SalvageCertificateSection        = "SalvageCertificate"
	MissingTitleSection              = "MissingTitle"
	ReleaseOfOwnershipSection        = "ReleaseOfOwnership"
	DuplicateStickersSection         = "DuplicateStickers"
	DuplicatePlatesSection           = "DuplicatePlates"
	OdometerDisclosureSection        = "OdometerDisclosure"
	SmogExemptionSection             = "SmogExemption"
	PowerOfAttorneySection           = "PowerOfAttorney"
	StatementOfFactsSection          = "StatementOfFacts"
	PlannedNonOperationSection       = "PlannedNonOperation"
	NameStatementSection             = "NameStatement"
	CommercialVehicleSection         = "CommercialVehicle"
	OutOfStateTitleSection           = "OutOfStateTitle"
	InheritanceSection               = "Inheritance"
	PreviousOwnerSection             = "PreviousOwner"
	RegisteredOwnerOfRecordSection   = "RegisteredOwnerOfRecord"
)

func personRules() []rule {
	return []rule{
		required("firstName", "First name").skippedWhenSet("businessName"),
		required("lastName", "Last name").skippedWhenSet("businessName"),
		optional("state", "State", ValidateState),
		optional("phoneNumber", "Phone", ValidatePhone),
	}
}

func addressRules() []rule {
	return []rule{
		required("street", "Street"),
		required("city", "City"),
		requiredWith("state", "State", ValidateState),
		requiredWith("zip", "ZIP", ValidateZIP),
	}
}

// nested prefixes every rule's field, e.g. for an Address inside LegalOwner.
func nested(prefix string, rules []rule) []rule {
	out := make([]rule, len(rules))
	for i, r := range rules {
		r.field = prefix + "." + r.field
		out[i] = r
	}
	return out
}

func init() {
	register(&Section{
		Name: VehicleInformationSection, Key: "vehicleInformation", Persisted: true,
		record: func() any { return &VehicleInformation{} },
		rules: []rule{
			requiredWith("hullId", "Vehicle ID", ValidateVIN),
			required("make", "Make"),
			requiredWith("year", "Year", ValidateYear),
			optional("mileage", "Mileage", ValidateNumeric),
		},
	})
	register(&Section{
		Name: VehicleTransactionDetailsSection, Key: "vehicleTransactionDetails", Persisted: true,
		record: func() any { return &VehicleTransactionDetails{} },
	})

	ownerRules := append(personRules(),
		optional("purchaseDate", "Purchase date", ValidateDate),
		requiredWith("purchaseValue", "Purchase price", ValidateNumeric).skippedWhen("vehicleTransactionDetails.isGift"),
	)
	register(&Section{
		Name: NewRegisteredOwnerSection, Key: "owners", Multi: true, MinItems: 1, Persisted: true,
		record: func() any { return &Owner{} },
		rules:  ownerRules,
	})
	register(&Section{
		Name: AddressSection, Key: "address", Persisted: true,
		record: func() any { return &Address{} },
		rules:  addressRules(),
	})
	register(&Section{
		Name: MailingAddressSection, Key: "mailingAddress", Persisted: true,
		record: func() any { return &Address{} },
		rules: []rule{
			optional("state", "State", ValidateState),
			optional("zip", "ZIP", ValidateZIP),
		},
	})
	register(&Section{
		Name: SellerSection, Key: "sellerInfo", Persisted: true,
		record: func() any { return &SellerInfo{} },
		rules: []rule{
			optional("saleDate", "Sale date", ValidateDate),
		},
		extra: validateSellers,
	})
	register(&Section{
		Name: LegalOwnerOfRecordSection, Key: "legalOwnerInformation", Persisted: true,
		record: func() any { return &LegalOwner{} },
		rules: append([]rule{
			required("name", "Legal owner name"),
			optional("releaseDate", "Release date", ValidateDate),
			optional("phoneNumber", "Phone", ValidatePhone),
		}, nested("address", addressRules())...),
	})
	register(&Section{
		Name: NewLienHolderSection, Key: "newLienHolder",
		record: func() any { return &NewLienHolder{} },
		rules: append([]rule{
			required("name", "Lienholder name"),
		}, nested("address", addressRules())...),
	})
	register(&Section{
		Name: LicensePlateSection, Key: "licensePlateDisposition", Persisted: true,
		record: func() any { return &LicensePlateDisposition{} },
		extra:  validatePlateDisposition,
	})
	register(&Section{
		Name: SalvageCertificateSection, Key: "salvageCertificate",
		record: func() any { return &SalvageCertificate{} },
		rules: []rule{
			required("insuranceCompany", "Insurance company"),
			required("claimNumber", "Claim number"),
			requiredWith("dateOfLoss", "Date of loss", ValidateDate),
		},
	})
	register(&Section{
		Name: MissingTitleSection, Key: "missingTitle",
		record: func() any { return &MissingTitle{} },
		rules: []rule{
			required("reason", "Reason"),
		},
		extra: func(doc formdoc.Document) []FieldError {
			if doc.String("missingTitle.reason") == "other" && doc.String("missingTitle.explanation") == "" {
				return []FieldError{{Section: MissingTitleSection, Field: "missingTitle.explanation", Message: "Explanation is required for other"}}
			}
			return nil
		},
	})
	register(&Section{
		Name: ReleaseOfOwnershipSection, Key: "releaseOfOwnership", Persisted: true,
		record: func() any { return &ReleaseOfOwnership{} },
		rules: []rule{
			required("name", "Releasing party"),
			optional("releaseDate", "Release date", ValidateDate),
			optional("phoneNumber", "Phone", ValidatePhone),
		},
	})
	register(&Section{
		Name: DuplicateStickersSection, Key: "duplicateStickers",
		record: func() any { return &DuplicateStickers{} },
		rules: []rule{
			required("reason", "Reason"),
		},
		extra: func(doc formdoc.Document) []FieldError {
			if !doc.Bool("duplicateStickers.month") && !doc.Bool("duplicateStickers.year") {
				return []FieldError{{Section: DuplicateStickersSection, Field: "duplicateStickers", Message: "select a month or year sticker"}}
			}
			return nil
		},
	})
	register(&Section{
		Name: DuplicatePlatesSection, Key: "duplicatePlates",
		record: func() any { return &DuplicatePlates{} },
		rules: []rule{
			required("reason", "Reason"),
			required("plateNumber", "Plate number"),
		},
	})
	register(&Section{
		Name: OdometerDisclosureSection, Key: "odometerDisclosure",
		record: func() any { return &OdometerDisclosure{} },
		rules: []rule{
			requiredWith("reading", "Odometer reading", ValidateNumeric),
		},
	})
	register(&Section{
		Name: SmogExemptionSection, Key: "smogExemption",
		record: func() any { return &SmogExemption{} },
		rules: []rule{
			required("reason", "Exemption reason"),
		},
	})
	register(&Section{
		Name: PowerOfAttorneySection, Key: "powerOfAttorney",
		record: func() any { return &PowerOfAttorney{} },
		rules: []rule{
			required("grantor", "Grantor"),
			required("grantee", "Grantee"),
			optional("date", "Date", ValidateDate),
		},
	})
	register(&Section{
		Name: StatementOfFactsSection, Key: "statementOfFacts",
		record: func() any { return &StatementOfFacts{} },
		rules: []rule{
			required("statement", "Statement"),
			optional("date", "Date", ValidateDate),
		},
	})
	register(&Section{
		Name: PlannedNonOperationSection, Key: "plannedNonOperation",
		record: func() any { return &PlannedNonOperation{} },
		rules: []rule{
			requiredWith("effectiveDate", "Effective date", ValidateDate),
		},
	})
	register(&Section{
		Name: NameStatementSection, Key: "nameStatement",
		record: func() any { return &NameStatement{} },
		rules: []rule{
			required("previousName", "Previous name"),
			required("newName", "New name"),
		},
	})
	register(&Section{
		Name: CommercialVehicleSection, Key: "commercialVehicle",
		record: func() any { return &CommercialVehicle{} },
		rules: []rule{
			requiredWith("unladenWeight", "Unladen weight", ValidateNumeric),
			optional("grossWeight", "Gross weight", ValidateNumeric),
		},
	})
	register(&Section{
		Name: OutOfStateTitleSection, Key: "outOfStateTitle",
		record: func() any { return &OutOfStateTitle{} },
		rules: []rule{
			requiredWith("state", "Issuing state", ValidateState),
			required("titleNumber", "Title number"),
			optional("issueDate", "Issue date", ValidateDate),
		},
	})
	register(&Section{
		Name: InheritanceSection, Key: "inheritance",
		record: func() any { return &Inheritance{} },
		rules: []rule{
			required("decedentName", "Decedent name"),
			requiredWith("dateOfDeath", "Date of death", ValidateDate),
		},
	})
	register(&Section{
		Name: PreviousOwnerSection, Key: "previousOwner",
		record: func() any { return &Person{} },
		rules:  personRules(),
	})
	register(&Section{
		Name: RegisteredOwnerOfRecordSection, Key: "registeredOwnerOfRecord",
		record: func() any { return &Person{} },
		rules:  personRules(),
	})
}

func validateSellers(doc formdoc.Document) []FieldError {
	n := doc.Len("sellerInfo.sellers")
	if n == 0 {
		return []FieldError{{Section: SellerSection, Field: "sellerInfo.sellers", Message: "at least one seller is required"}}
	}
	s, _ := ByName(SellerSection)
	var errs []FieldError
	for i := 0; i < n; i++ {
		prefix := "sellerInfo.sellers." + strconv.Itoa(i)
		for _, r := range personRules() {
			errs = append(errs, s.applyRuleAt(doc, prefix, r)...)
		}
	}
	return errs
}

func validatePlateDisposition(doc formdoc.Document) []FieldError {
	for _, flag := range []string{"surrendered", "destroyed", "lost", "stolen", "retainedByOwner"} {
		if doc.Bool("licensePlateDisposition." + flag) {
			return nil
		}
	}
	return []FieldError{{Section: LicensePlateSection, Field: "licensePlateDisposition", Message: "choose what happened to the plates"}}
}
