package risk

// Vehicle age and mileage red flags. Each band is exclusive: only the highest
// matching add-on of a factor applies.

const (
	oldAge        = 10
	agingAge      = 6
	highMileage   = 150000
	raisedMileage = 80000

	strongAddOn = 0.2
	mildAddOn   = 0.1
)

func ageAddOn(age int) float64 {
	switch {
	case age > oldAge:
		return strongAddOn
	case age > agingAge:
		return mildAddOn
	default:
		return 0
	}
}

func mileageAddOn(km float64) float64 {
	switch {
	case km > highMileage:
		return strongAddOn
	case km > raisedMileage:
		return mildAddOn
	default:
		return 0
	}
}
