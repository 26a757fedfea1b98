package utils

import "os"

func SysError(name string, err error) error {
	return os.NewSyscallError(name, err)
}
