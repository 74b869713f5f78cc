package core

import "strings"

// NoInfo is shown for object values with no recognized label field.
const NoInfo = "Sin información"

// ObjectLabel reduces a reference object to a human label. It never
// returns the object's identifier.
func ObjectLabel(obj map[string]any) string {
	name := scalarString(obj["name"])
	code := scalarString(obj["code"])

	switch {
	case name != "" && obj["price"] != nil:
		return name + " - " + money(obj["price"])
	case name != "" && code != "":
		return name + " (" + code + ")"
	case code != "":
		return code
	}
	if last := scalarString(obj["lastName"]); name != "" && last != "" {
		return name + " " + last
	}
	for _, k := range []string{"name", "username", "contactPerson", "orderCode", "correlative", "reference"} {
		if s := scalarString(obj[k]); s != "" {
			return s
		}
	}
	return NoInfo
}

// itemLabel labels one element of an order's items array, looking
// through its itemId reference and appending the quantity.
func itemLabel(obj map[string]any) string {
	src := obj
	if ref, ok := obj["itemId"].(map[string]any); ok {
		src = ref
	}

	name := scalarString(src["name"])
	if name == "" {
		name = scalarString(obj["name"])
	}
	price := src["price"]
	if price == nil {
		price = obj["price"]
	}

	var label string
	switch {
	case name != "" && price != nil:
		label = name + " - " + money(price)
	case name != "":
		label = name
	default:
		label = ObjectLabel(src)
	}

	if qty := scalarString(obj["quantity"]); qty != "" {
		label += " (x" + qty + ")"
	}
	return label
}

// fieldLabels translates raw record keys to Spanish column headers.
var fieldLabels = map[string]string{
	"_id":              "ID",
	"name":             "Nombre",
	"lastName":         "Apellido",
	"email":            "Correo",
	"username":         "Usuario",
	"phone":            "Teléfono",
	"address":          "Dirección",
	"description":      "Descripción",
	"code":             "Código",
	"correlative":      "Correlativo",
	"orderCode":        "Código de pedido",
	"price":            "Precio",
	"cost":             "Costo",
	"stock":            "Existencias",
	"quantity":         "Cantidad",
	"status":           "Estado",
	"paymentStatus":    "Estado de pago",
	"paymentMethod":    "Método de pago",
	"total":            "Total",
	"subtotal":         "Subtotal",
	"tax":              "Impuesto",
	"discount":         "Descuento",
	"amount":           "Monto",
	"reason":           "Motivo",
	"rating":           "Calificación",
	"comment":          "Comentario",
	"customer":         "Cliente",
	"product":          "Producto",
	"items":            "Artículos",
	"category":         "Categoría",
	"subcategory":      "Subcategoría",
	"collection":       "Colección",
	"provider":         "Proveedor",
	"supplier":         "Proveedor",
	"contactPerson":    "Contacto",
	"images":           "Imágenes",
	"image":            "Imagen",
	"material":         "Material",
	"weight":           "Peso",
	"rawMaterialsUsed": "Materias primas",
	"isActive":         "Activo",
	"isVerified":       "Verificado",
	"isAvailable":      "Disponible",
	"type":             "Tipo",
	"reference":        "Referencia",
	"movementType":     "Tipo de movimiento",
	"minStock":         "Existencia mínima",
	"margin":           "Margen",
	"createdAt":        "Fecha de creación",
	"updatedAt":        "Última actualización",
	"deliveryDate":     "Fecha de entrega",
	"orderDate":        "Fecha de pedido",
	"transactionDate":  "Fecha de transacción",
}

// FieldLabel returns the Spanish header for key, then the column label,
// then the raw key.
func FieldLabel(key string, cols []ColumnDescriptor) string {
	if l, ok := fieldLabels[key]; ok {
		return l
	}
	if c, ok := findColumn(cols, key); ok && strings.TrimSpace(c.Label) != "" {
		return c.Label
	}
	return key
}
