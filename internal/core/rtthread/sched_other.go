//go:build !linux

package rtthread

func gettid() int {
	return 0
}

func setThreadName(string) error {
	return nil
}

// applySched 非 Linux 平台只接受默认参数
func applySched(_ int, p Params) error {
	if p.IsDefault() {
		return nil
	}
	return schedErr(KindUnsupported, "sched_setattr", nil)
}
