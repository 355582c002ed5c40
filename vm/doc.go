// Package vm is a reference implementation of the InVM accumulator machine,
// used to execute generated programs in tests and from the CLI.
//
// This package contains:
//   - Assemble, which parses InVM instruction text into a Program
//   - Machine, which runs a Program with the FUND1/FUND2 registers,
//     zero-initialized slot memory and a value stack
//   - Disassemble, which renders a Program back to text
package vm
