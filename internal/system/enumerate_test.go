package system

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLsblk(t *testing.T) {
	out := "/dev/sda 0 disk\n/dev/sdb 1 disk\n/dev/sdb1 1 part\n/dev/sr0 1 rom\n/dev/loop0 1 disk\n\n/dev/mmcblk0 1 disk\n"
	devices := parseLsblk(out)

	assert.Equal(t, []DeviceDescriptor{
		{Path: "/dev/sdb", DisplayLetter: "sdb", Model: UnknownModel, Removable: true},
		{Path: "/dev/mmcblk0", DisplayLetter: "mmcblk0", Model: UnknownModel, Removable: true},
	}, devices)
	assert.Empty(t, parseLsblk(""))
}

func TestParseUdevModel(t *testing.T) {
	out := "DEVNAME=/dev/sdb\nID_VENDOR=SanDisk\nID_MODEL=Cruzer_Blade\nID_SERIAL=x\n"
	assert.Equal(t, "Cruzer Blade", parseUdevModel(out))
	assert.Equal(t, "", parseUdevModel("ID_VENDOR=Generic\n"))
	assert.Equal(t, "", parseUdevModel("ID_MODEL=\n"))
}

func TestParseWmic(t *testing.T) {
	partitions := "Antecedent                                                   Dependent\n" +
		`\\HOST\root\cimv2:Win32_DiskPartition.DeviceID="Disk #0, Partition #1"  \\HOST\root\cimv2:Win32_LogicalDisk.DeviceID="C:"` + "\n" +
		`\\HOST\root\cimv2:Win32_DiskPartition.DeviceID="Disk #2, Partition #0"  \\HOST\root\cimv2:Win32_LogicalDisk.DeviceID="E:"` + "\n"
	assert.Equal(t, "2", parseWmicDiskIndex(partitions, "E:"))
	assert.Equal(t, "2", parseWmicDiskIndex(partitions, `e:\`))
	assert.Equal(t, "", parseWmicDiskIndex(partitions, "F:"))

	drives := "Index  Model\n0      Samsung SSD 980\n2      SanDisk Ultra USB 3.0 USB Device\n"
	assert.Equal(t, "SanDisk Ultra USB 3.0 USB Device", parseWmicModel(drives, "2"))
	assert.Equal(t, "", parseWmicModel(drives, "5"))
}

func TestFindDevice(t *testing.T) {
	devices := []DeviceDescriptor{
		{Path: "/dev/sdb", DisplayLetter: "sdb", Removable: true},
		{Path: `E:\`, DisplayLetter: "E:", Removable: true},
	}
	d, ok := FindDevice(devices, "sdb")
	assert.True(t, ok)
	assert.Equal(t, "/dev/sdb", d.Path)

	d, ok = FindDevice(devices, "e:")
	assert.True(t, ok)
	assert.Equal(t, `E:\`, d.Path)

	_, ok = FindDevice(devices, "/dev/sdc")
	assert.False(t, ok)
}

func TestLabelAndNormalize(t *testing.T) {
	assert.Equal(t, "sdb (Unknown)", DeviceDescriptor{Path: "/dev/sdb", DisplayLetter: "sdb"}.Label())
	assert.Equal(t, "/dev/sdc (Cruzer)", DeviceDescriptor{Path: "/dev/sdc", Model: "Cruzer"}.Label())
	assert.Equal(t, "", normalizeModel("unknown"))
	assert.Equal(t, "Ultra Fit", normalizeModel(" Ultra_Fit "))
}

func TestIsWindowsError(t *testing.T) {
	assert.True(t, IsWindowsError(errors.New("write E:\\x.bin: There is not enough space on the disk."), ERROR_DISK_FULL))
	assert.True(t, IsWindowsError(errors.New("dd: error writing '/dev/sdb': No space left on device"), ERROR_DISK_FULL))
	assert.True(t, IsWindowsError(errors.New("open /dev/sdb: no medium found"), ERROR_NOT_READY))
	assert.False(t, IsWindowsError(nil, ERROR_DISK_FULL))
	assert.False(t, IsWindowsError(errors.New("permission denied"), ERROR_DISK_FULL))
}
