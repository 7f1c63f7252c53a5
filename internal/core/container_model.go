package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContainerStatus is where a container is in its shipping cycle.
// Any status may follow any other; only membership in the set is enforced.
type ContainerStatus string

const (
	ContainerEmpty               ContainerStatus = "EMPTY"
	ContainerAvailable           ContainerStatus = "AVAILABLE"
	ContainerLoading             ContainerStatus = "LOADING"
	ContainerLoaded              ContainerStatus = "LOADED"
	ContainerInTransitToPort     ContainerStatus = "IN_TRANSIT_TO_PORT"
	ContainerAtPortOrigin        ContainerStatus = "AT_PORT_ORIGIN"
	ContainerInTransitMain       ContainerStatus = "IN_TRANSIT_MAIN"
	ContainerAtPortDestination   ContainerStatus = "AT_PORT_DESTINATION"
	ContainerInTransitToCustomer ContainerStatus = "IN_TRANSIT_TO_CUSTOMER"
	ContainerUnloading           ContainerStatus = "UNLOADING"
	ContainerAwaitingReturn      ContainerStatus = "AWAITING_RETURN"
	ContainerInTransitReturn     ContainerStatus = "IN_TRANSIT_RETURN"
	ContainerMaintenance         ContainerStatus = "MAINTENANCE"
	ContainerDamaged             ContainerStatus = "DAMAGED"
	ContainerDecommissioned      ContainerStatus = "DECOMMISSIONED"
)

// ContainerStatuses lists every container status in cycle order.
var ContainerStatuses = []ContainerStatus{
	ContainerEmpty, ContainerAvailable, ContainerLoading, ContainerLoaded,
	ContainerInTransitToPort, ContainerAtPortOrigin, ContainerInTransitMain,
	ContainerAtPortDestination, ContainerInTransitToCustomer, ContainerUnloading,
	ContainerAwaitingReturn, ContainerInTransitReturn, ContainerMaintenance,
	ContainerDamaged, ContainerDecommissioned,
}

// ParseContainerStatus validates a status name.
func ParseContainerStatus(s string) (ContainerStatus, error) {
	st := ContainerStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ContainerStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", invalid("status", "unknown container status %q", s)
}

// FormatContainerCode renders the n-th counter value as a container code.
func FormatContainerCode(n int64) string {
	return fmt.Sprintf("#C-%05d", n)
}

// ContainerFees are the per-container charges. A nil fee counts as zero.
type ContainerFees struct {
	BankCharges        *decimal.Decimal `json:"bank_charges"`
	DutyAndFees        *decimal.Decimal `json:"duty_and_fees"`
	TransportationFees *decimal.Decimal `json:"transportation_fees"`
	Discharge          *decimal.Decimal `json:"discharge"`
}

// Total sums the fees, treating nil as zero.
func (f ContainerFees) Total() decimal.Decimal {
	total := decimal.Zero
	for _, fee := range []*decimal.Decimal{f.BankCharges, f.DutyAndFees, f.TransportationFees, f.Discharge} {
		if fee != nil {
			total = total.Add(*fee)
		}
	}
	return total
}

func (f ContainerFees) validate() error {
	fields := map[string]*decimal.Decimal{
		"bank_charges":        f.BankCharges,
		"duty_and_fees":       f.DutyAndFees,
		"transportation_fees": f.TransportationFees,
		"discharge":           f.Discharge,
	}
	for name, fee := range fields {
		if fee != nil && fee.IsNegative() {
			return invalid(name, "cannot be negative")
		}
	}
	return nil
}

// ContainerFinancials are derived from the products a container carries and its fees.
type ContainerFinancials struct {
	PurchasedCost   decimal.Decimal `json:"purchased_cost"`
	ExpectedRevenue decimal.Decimal `json:"expected_revenue"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	ExpectedProfit  decimal.Decimal `json:"expected_profit"`
	ProductCount    int             `json:"product_count"`
}

// computeFinancials derives profit as revenue minus purchased cost and fees.
func computeFinancials(purchased, revenue decimal.Decimal, products int, fees ContainerFees) ContainerFinancials {
	total := fees.Total()
	return ContainerFinancials{
		PurchasedCost:   purchased,
		ExpectedRevenue: revenue,
		TotalFees:       total,
		ExpectedProfit:  revenue.Sub(purchased.Add(total)),
		ProductCount:    products,
	}
}

// Container is a shipping container with its location, fees and derived financials.
type Container struct {
	ID                         int             `json:"id"`
	Code                       string          `json:"code"`
	Type                       string          `json:"type"`
	Status                     ContainerStatus `json:"status"`
	CurrentLocationDescription string          `json:"current_location_description"`
	CurrentWarehouseID         *int            `json:"current_warehouse_id,omitempty"`
	CurrentWarehouse           string          `json:"current_warehouse,omitempty"`
	AssignedCustomerID         *int            `json:"assigned_customer_id,omitempty"`
	ContainerFees
	CurrentGoodsDescription string              `json:"current_goods_description"`
	LastKnownOrigin         string              `json:"last_known_origin"`
	CreatedBy               *int                `json:"created_by,omitempty"`
	Financials              ContainerFinancials `json:"financials"`
	CreatedAt               time.Time           `json:"created_at"`
	UpdatedAt               time.Time           `json:"updated_at"`
}

// CreateContainerInput is the input for CreateContainer. An empty Code draws the next sequential code.
type CreateContainerInput struct {
	Code                       string
	Type                       string
	Status                     ContainerStatus
	CurrentLocationDescription string
	CurrentWarehouseID         *int
	AssignedCustomerID         *int
	Fees                       ContainerFees
	CurrentGoodsDescription    string
	LastKnownOrigin            string
	CreatedBy                  *int
}

// ContainerFilter narrows ListContainers. Zero values match everything.
type ContainerFilter struct {
	Status             ContainerStatus
	AssignedCustomerID int
	WarehouseID        int
}
