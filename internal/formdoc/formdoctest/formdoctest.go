// Package formdoctest provides complete form documents for tests.
package formdoctest

import "github.com/formmatic/formmatic/internal/formdoc"

// SimpleTransfer returns a fully valid single-owner, non-gift transfer with
// the title in hand and no lienholder.
func SimpleTransfer() formdoc.Document {
	return formdoc.Document{
		"vehicleInformation": map[string]any{
			"hullId": "1HGCM82633A004352",
			"make":   "Honda",
			"model":  "Accord",
			"year":   "2003",
		},
		"vehicleTransactionDetails": map[string]any{
			"withTitle": true,
		},
		"sellerInfo": map[string]any{
			"sellers": []any{
				map[string]any{"firstName": "Maria", "lastName": "Lopez", "state": "CA"},
			},
			"saleDate": "03/14/2024",
		},
		"owners": []any{
			map[string]any{
				"firstName":     "Ana",
				"lastName":      "Diaz",
				"purchaseDate":  "03/14/2024",
				"purchaseValue": "4500",
			},
		},
		"address": map[string]any{
			"street": "12 Olive Ave",
			"city":   "Fresno",
			"state":  "CA",
			"zip":    "93721",
		},
		"licensePlateDisposition": map[string]any{
			"plateNumber":     "7ABC123",
			"retainedByOwner": true,
		},
	}
}

// LienHolderRemoval returns a lien release with the title in hand.
func LienHolderRemoval() formdoc.Document {
	return formdoc.Document{
		"vehicleInformation": map[string]any{
			"hullId": "1HGCM82633A004352",
			"make":   "Honda",
			"year":   "2003",
		},
		"vehicleTransactionDetails": map[string]any{
			"currentLienholder": true,
			"withTitle":         true,
		},
		"registeredOwnerOfRecord": map[string]any{"firstName": "Ana", "lastName": "Diaz"},
		"address": map[string]any{
			"street": "12 Olive Ave",
			"city":   "Fresno",
			"state":  "CA",
			"zip":    "93721",
		},
		"legalOwnerInformation": map[string]any{
			"name": "Golden State Credit Union",
			"address": map[string]any{
				"street": "1 Capitol Mall",
				"city":   "Sacramento",
				"state":  "CA",
				"zip":    "95814",
			},
		},
		"releaseOfOwnership": map[string]any{"name": "Golden State Credit Union"},
	}
}
