package system

// NoDeviceSentinel подставляется в списки выбора, когда устройств нет
const NoDeviceSentinel = "No USB found"

// UnknownModel модель устройства, если ее не удалось определить
const UnknownModel = "Unknown"

// DeviceDescriptor описывает съемное устройство, найденное при перечислении
type DeviceDescriptor struct {
	Path          string // /dev/sdb или E:\
	DisplayLetter string // sdb или E:
	Model         string
	Removable     bool
	SizeBytes     uint64
}

// Label строка для вывода пользователю
func (d DeviceDescriptor) Label() string {
	name := d.DisplayLetter
	if name == "" {
		name = d.Path
	}
	model := d.Model
	if model == "" {
		model = UnknownModel
	}
	return name + " (" + model + ")"
}
