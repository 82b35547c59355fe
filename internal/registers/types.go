// internal/registers/types.go
package registers

// PowerUnit is the unit summed into the synthesized power total.
const PowerUnit = "W"

// PowerTotalID is the id of the synthesized power total measurement.
const PowerTotalID = "powerTotal"

// Descriptor locates one physical quantity inside a raw register block.
// Register is a BYTE offset into the block, not a Modbus register address.
type Descriptor struct {
	ID       string `yaml:"id" json:"id"`
	Register int    `yaml:"register" json:"register"`
	Bytes    int    `yaml:"bytes" json:"bytes"`
	ToFixed  int    `yaml:"toFixed" json:"toFixed"`
	Unit     string `yaml:"unit" json:"unit"`
}

// Map is the ordered register map. Immutable after Load.
type Map []Descriptor

// Span returns the number of block bytes the map needs.
func (m Map) Span() int {
	n := 0
	for _, d := range m {
		if end := d.Register + d.Bytes; end > n {
			n = end
		}
	}
	return n
}

// Measurement is one decoded value, formatted to its descriptor precision.
type Measurement struct {
	ID    string
	Value string
	Unit  string
}
