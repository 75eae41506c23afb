package postgres

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
	"github.com/xenking/comeia-checkout/internal/domain/product"
)

// encodeItems renders an order's item snapshot for the items JSONB column.
func encodeItems(items []cart.Item) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, it := range items {
		p := it.Product
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("price")
		e.Str(p.Price.String())
		e.FieldStart("description")
		e.Str(p.Description)
		e.FieldStart("image")
		e.Str(p.Image)
		e.FieldStart("category")
		e.Str(p.Category)
		e.FieldStart("stock")
		e.Int(p.Stock)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()

	return append([]byte(nil), e.Bytes()...)
}

func decodeItems(data []byte) ([]cart.Item, error) {
	var items []cart.Item
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var (
			it cart.Item
			p  product.Product
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "productId":
				p.ID, err = d.Str()
			case "name":
				p.Name, err = d.Str()
			case "price":
				var s string
				if s, err = d.Str(); err == nil {
					p.Price, err = decimal.NewFromString(s)
				}
			case "description":
				p.Description, err = d.Str()
			case "image":
				p.Image, err = d.Str()
			case "category":
				p.Category, err = d.Str()
			case "stock":
				p.Stock, err = d.Int()
			case "quantity":
				it.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		it.Product = p
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode items")
	}
	return items, nil
}

// encodePaymentData renders the payload of a redacted payment method.
func encodePaymentData(m payment.Method) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	switch d := m.Data.(type) {
	case payment.PixData:
		e.FieldStart("key")
		e.Str(d.Key)
	case payment.CreditCardData:
		e.FieldStart("number")
		e.Str(d.Number)
		e.FieldStart("name")
		e.Str(d.Name)
		e.FieldStart("expiry")
		e.Str(d.Expiry)
	}
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

func decodePaymentData(t payment.MethodType, data []byte) (payment.Method, error) {
	fields := make(map[string]string)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		fields[key] = v
		return nil
	})
	if err != nil {
		return payment.Method{}, errors.Wrap(err, "decode payment data")
	}

	m := payment.Method{Type: t}
	switch t {
	case payment.Pix:
		m.Data = payment.PixData{Key: fields["key"]}
	case payment.CreditCard:
		m.Data = payment.CreditCardData{
			Number: fields["number"],
			Name:   fields["name"],
			Expiry: fields["expiry"],
		}
	case payment.Boleto:
		m.Data = payment.BoletoData{}
	}
	return m, nil
}
