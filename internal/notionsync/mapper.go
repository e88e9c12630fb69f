package notionsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/frontdata"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// Rent board property names.
const (
	PropRentKey     = "Rent Key"
	PropTenant      = "Tenant"
	PropReference   = "Reference"
	PropPeriod      = "Period"
	PropTotal       = "Total"
	PropPaid        = "Paid"
	PropBalance     = "Balance"
	PropStatus      = "Status"
	PropDescription = "Description"
)

// RentKey identifies a rent page: "<tenant id>:<term>".
func RentKey(tenantID string, tm term.Term) string {
	return fmt.Sprintf("%s:%d", tenantID, int64(tm))
}

// ParseRentKey splits a rent key. ok is false for keys not written by RentKey.
func ParseRentKey(key string) (string, term.Term, bool) {
	i := strings.LastIndex(key, ":")
	if i <= 0 {
		return "", 0, false
	}
	tm, err := term.ParseString(key[i+1:])
	if err != nil {
		return "", 0, false
	}
	return key[:i], tm, true
}

// RentToNotionProperties converts a rent view to rent board properties.
func RentToNotionProperties(v frontdata.RentView) notionapi.Properties {
	props := notionapi.Properties{
		PropRentKey: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: RentKey(v.OccupantID, v.Term),
					},
				},
			},
		},
		PropPeriod: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(v.Year, time.Month(v.Month), 1, 0, 0, 0, 0, time.UTC))
					return &d
				}(),
			},
		},
		PropTotal:   notionapi.NumberProperty{Number: toFloat(v.TotalAmount)},
		PropPaid:    notionapi.NumberProperty{Number: toFloat(v.Payment)},
		PropBalance: notionapi.NumberProperty{Number: toFloat(v.NewBalance)},
		PropStatus: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(v.Status),
			},
		},
	}

	if v.Occupant != "" {
		props[PropTenant] = richText(v.Occupant)
	}
	if v.Reference != "" {
		props[PropReference] = richText(v.Reference)
	}
	if v.Description != "" {
		props[PropDescription] = richText(v.Description)
	}
	return props
}

func richText(content string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{
					Content: content,
				},
			},
		},
	}
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
