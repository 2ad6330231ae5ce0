package registrar

import "github.com/winston-domains/winston/internal/config"

func testContact() config.Contact {
	return config.Contact{
		FirstName: "Ops",
		LastName:  "Team",
		Email:     "ops@example.com",
		Phone:     "+1.5555550100",
		Address:   "1 Main St",
		City:      "Springfield",
		State:     "IL",
		Zip:       "62701",
		Country:   "US",
	}
}
