// Command paramctl inspects and changes the parameter tree of a remote
// instrument.
//
// Usage:
//
//	paramctl [global flags] <command> [flags] [args]
//
// Commands:
//
//	get      Read a value
//	set      Write a value
//	ls       List the children of a node
//	info     Show the metadata of a node
//	exec     Run a command node
//	resize   Change the length of an array
//	watch    Print changes of nodes as they happen
//	dump     Print a subtree with values
//	browse   List servers announced via mDNS
//	log      View and analyze protocol capture files
//	shell    Interactive session
//
// Examples:
//
//	# Read the front-end gain
//	paramctl -a bpm-07:7420 get /frontend/gain
//
//	# Select an enum value by name
//	paramctl -a bpm-07:7420 set /acquisition/mode turn-by-turn
//
//	# Find a server by instance name and follow its positions
//	paramctl -s bpm-07 watch /position/x /position/y
//
//	# Show the failed responses of a capture
//	paramctl log stats paramd.plog
package main

func main() {
	execute()
}
