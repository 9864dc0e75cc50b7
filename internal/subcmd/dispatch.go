package subcmd

// Dispatch invokes the first descriptor in reg whose name equals
// args.Command. It reports whether a descriptor matched; when none does the
// call is a no-op and returns (false, nil). Handler errors are returned
// unmodified.
func Dispatch(reg *Registry, args *Args) (bool, error) {
	if reg == nil || args == nil {
		return false, nil
	}
	for _, entry := range reg.entries {
		if entry.Name != args.Command {
			continue
		}
		return true, entry.Handler.Execute(args)
	}
	return false, nil
}
