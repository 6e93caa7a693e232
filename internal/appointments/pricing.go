package appointments

// Pricing holds the commission and general-queue price schedule.
type Pricing struct {
	CommissionPercent    int64
	GeneralPayout        int64
	GeneralStandardPrice int64
	GeneralPremiumPrice  int64
}

// DefaultPricing is 30% commission on doctor bookings and a fixed payout of
// 1750 on general requests priced 4000 (2500 for premium). All amounts are
// whole currency units, the same unit as a doctor's hourly_rate.
func DefaultPricing() Pricing {
	return Pricing{
		CommissionPercent:    30,
		GeneralPayout:        1750,
		GeneralStandardPrice: 4000,
		GeneralPremiumPrice:  2500,
	}
}

// Charge is the financial split of one appointment.
type Charge struct {
	Amount     int64
	Commission int64
	Payout     int64
}

// ForRate prices a booking against a doctor's hourly rate. Commission rounds down.
func (p Pricing) ForRate(hourlyRate int64) Charge {
	commission := hourlyRate * p.CommissionPercent / 100
	return Charge{Amount: hourlyRate, Commission: commission, Payout: hourlyRate - commission}
}

// ForGeneral prices an unassigned request by subscription tier.
func (p Pricing) ForGeneral(premium bool) Charge {
	price := p.GeneralStandardPrice
	if premium {
		price = p.GeneralPremiumPrice
	}
	return Charge{Amount: price, Commission: price - p.GeneralPayout, Payout: p.GeneralPayout}
}
