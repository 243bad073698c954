package orders

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/orderdesk/internal/shared"
)

const (
	formsetPrefix   = "items"
	maxFormsetForms = 1000
	extraForms      = 1
)

// ItemRow is one row of the line item formset as submitted or rendered.
type ItemRow struct {
	Index     int
	ItemID    int64
	ProductID string
	Quantity  string
	UnitPrice string
	Delete    bool
	LineTotal string
	Errors    map[string]string
}

// Field renders the form name of a row field, e.g. items-0-quantity.
func (r ItemRow) Field(name string) string {
	return fmt.Sprintf("%s-%d-%s", formsetPrefix, r.Index, name)
}

// ItemFormset is the nested line item editor on the order page.
type ItemFormset struct {
	Rows          []ItemRow
	NonFormErrors []string
	directiveRow  []int
}

// TotalFormsField is the management field holding the row count.
func (f *ItemFormset) TotalFormsField() string { return formsetPrefix + "-TOTAL_FORMS" }

// TotalForms is the number of rows rendered.
func (f *ItemFormset) TotalForms() int { return len(f.Rows) }

// HasErrors reports whether any row or the formset itself carries an error.
func (f *ItemFormset) HasErrors() bool {
	if len(f.NonFormErrors) > 0 {
		return true
	}
	for _, r := range f.Rows {
		if len(r.Errors) > 0 {
			return true
		}
	}
	return false
}

// NewItemFormset renders the current lines of an order followed by blank rows for new lines.
func NewItemFormset(items []OrderItem) *ItemFormset {
	f := &ItemFormset{}
	for i, item := range items {
		f.Rows = append(f.Rows, ItemRow{
			Index:     i,
			ItemID:    item.ID,
			ProductID: strconv.FormatInt(item.ProductID, 10),
			Quantity:  strconv.Itoa(item.Quantity),
			UnitPrice: shared.FormatMoney(item.UnitPrice),
			LineTotal: shared.FormatMoney(LineTotal(item)),
		})
	}
	for i := 0; i < extraForms; i++ {
		f.Rows = append(f.Rows, ItemRow{Index: len(f.Rows), Quantity: "1"})
	}
	return f
}

// ParseItemFormset reads the submitted formset into directives. Row level parse errors are
// recorded on the rows, and the formset is only usable when HasErrors is false.
func ParseItemFormset(form url.Values) (*ItemFormset, []Directive) {
	f := &ItemFormset{}
	total, err := strconv.Atoi(strings.TrimSpace(form.Get(f.TotalFormsField())))
	if err != nil || total < 0 {
		f.NonFormErrors = append(f.NonFormErrors, "ManagementForm data is missing or has been tampered with.")
		return f, nil
	}
	if total > maxFormsetForms {
		f.NonFormErrors = append(f.NonFormErrors, fmt.Sprintf("Please submit at most %d forms.", maxFormsetForms))
		return f, nil
	}

	var directives []Directive
	for i := 0; i < total; i++ {
		row := ItemRow{Index: i}
		rawID := strings.TrimSpace(form.Get(row.Field("id")))
		row.ProductID = strings.TrimSpace(form.Get(row.Field("product")))
		row.Quantity = strings.TrimSpace(form.Get(row.Field("quantity")))
		row.UnitPrice = strings.TrimSpace(form.Get(row.Field("unit_price")))
		row.Delete = isChecked(form.Get(row.Field("DELETE")))

		verr := &shared.ValidationError{}
		if rawID != "" {
			id, err := strconv.ParseInt(rawID, 10, 64)
			if err != nil || id <= 0 {
				verr.Add("item_id", msgForeignItem)
			}
			row.ItemID = id
		}

		existing := rawID != ""
		if !existing && (row.Delete || row.blank()) {
			f.Rows = append(f.Rows, row)
			continue
		}

		d := Directive{ItemID: row.ItemID}
		switch {
		case existing && row.Delete:
			d.Op = OpRemove
		case existing:
			d.Op = OpUpdate
		default:
			d.Op = OpAdd
		}

		if d.Op != OpRemove {
			d.ProductID = parseRequiredID(verr, "product", row.ProductID)
			d.Quantity = parseQuantity(verr, row.Quantity, existing)
			d.UnitPrice = parsePrice(verr, row.UnitPrice)
			d.Reprice = existing && row.UnitPrice == ""
		}

		row.Errors = verr.Fields
		if verr.Empty() {
			f.directiveRow = append(f.directiveRow, i)
			directives = append(directives, d)
		}
		f.Rows = append(f.Rows, row)
	}
	return f, directives
}

// Selected reports whether the row's product select should preselect id.
func (r ItemRow) Selected(id int64) bool {
	return r.ProductID == strconv.FormatInt(id, 10)
}

// blank reports an untouched extra row.
func (r ItemRow) blank() bool {
	return r.ProductID == "" && r.UnitPrice == "" && (r.Quantity == "" || r.Quantity == "1")
}

func isChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func parseRequiredID(verr *shared.ValidationError, field, raw string) int64 {
	if raw == "" {
		verr.Add(field, msgRequired)
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		verr.Add(field, msgInvalidChoice)
		return 0
	}
	return id
}

func parseQuantity(verr *shared.ValidationError, raw string, required bool) *int {
	if raw == "" {
		if required {
			verr.Add("quantity", msgRequired)
		}
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add("quantity", "Enter a whole number.")
		return nil
	}
	return &n
}

func parsePrice(verr *shared.ValidationError, raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	d, err := shared.ParseMoney(raw)
	if err != nil {
		verr.Add("unit_price", "Enter a number.")
		return nil
	}
	return &d
}

// ApplyErrors maps batch errors back onto the rows that produced the directives.
// Field names follow the form, so product_id errors land on the product input.
func (f *ItemFormset) ApplyErrors(berr *shared.BatchValidationError) {
	for _, de := range berr.Errors {
		if de.Index < 0 || de.Index >= len(f.directiveRow) {
			continue
		}
		row := &f.Rows[f.directiveRow[de.Index]]
		if row.Errors == nil {
			row.Errors = make(map[string]string)
		}
		for field, msg := range de.Fields {
			if field == "product_id" {
				field = "product"
			}
			if _, ok := row.Errors[field]; !ok {
				row.Errors[field] = msg
			}
		}
	}
}
