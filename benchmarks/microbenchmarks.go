package benchmarks

import "github.com/sarchlab/pipesim/emu"

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific pipeline or memory characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		matrixMultiply2x2(),
		loopSimulation(),
		cacheConflict(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick validation:
// a loop, a matrix multiply and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// pokeAll returns a Setup that writes values starting at base.
func pokeAll(base uint32, values ...uint32) func(mem emu.WordMemory) error {
	return func(mem emu.WordMemory) error {
		for i, v := range values {
			if err := mem.Poke(base+uint32(i), v); err != nil {
				return err
			}
		}
		return nil
	}
}

// 1. Arithmetic Sequential - Tests ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDI operations - measures ALU throughput",
		Source: `
			ADDI R1, R1, #1
			ADDI R2, R2, #1
			ADDI R3, R3, #1
			ADDI R4, R4, #1
			ADDI R5, R5, #1
			ADDI R1, R1, #1
			ADDI R2, R2, #1
			ADDI R3, R3, #1
			ADDI R4, R4, #1
			ADDI R5, R5, #1
			ADDI R1, R1, #1
			ADDI R2, R2, #1
			ADDI R3, R3, #1
			ADDI R4, R4, #1
			ADDI R5, R5, #1
			ADDI R1, R1, #1
			ADDI R2, R2, #1
			ADDI R3, R3, #1
			ADDI R4, R4, #1
			ADDI R5, R5, #1
		`,
		Expected: map[uint8]uint32{1: 4, 2: 4, 3: 4, 4: 4, 5: 4},
	}
}

// 2. Dependency Chain - Tests RAW hazard stalls without forwarding
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "10 dependent ADDIs (R1 = R1 + 1) - measures hazard stalls",
		Source: `
			ADDI R1, R1, #1
			ADDI R1, R1, #1
			ADDI R1, R1, #1
			ADDI R1, R1, #1
			ADDI R1, R1, #1
			ADDI R1, R1, #1
			ADDI R1, R1, #1
			ADDI R1, R1, #1
			ADDI R1, R1, #1
			ADDI R1, R1, #1
		`,
		Expected: map[uint8]uint32{1: 10},
	}
}

// 3. Memory Sequential - Tests store then load through the cache
func memorySequential() Benchmark {
	return Benchmark{
		Name:        "memory_sequential",
		Description: "stores and loads to adjacent words plus a preloaded value",
		Source: `
			MOVI R1, #512
			MOVI R2, #7
			STR  R2, [R1]
			MOVI R3, #11
			STR  R3, [R1, #1]
			LOAD R4, [R1]
			LOAD R5, [R1, #1]
			ADD  R5, R5, R4
			MOVI R7, #600
			LOAD R6, [R7]
		`,
		Setup:    pokeAll(600, 100),
		Expected: map[uint8]uint32{4: 7, 5: 18, 6: 100},
	}
}

// 4. Function Calls - Tests CAL/JMP return pairs
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "3 calls to a leaf routine - measures call/return flush cost",
		Source: `
			      MOVI R10, end
			      MOVI R1, #0
			      CAL  R0, add5
			      CAL  R0, add5
			      CAL  R0, add5
			      JMP  R10
			add5: ADDI R1, R1, #5
			      JMP  R31
			end:
		`,
		Expected: map[uint8]uint32{1: 15, 31: 5},
	}
}

// 5. Branch Taken - Tests taken conditional branches
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "chain of taken BEQ and BLT branches - measures squash cost",
		Source: `
			   MOVI  R1, #0
			   CMP   R0, R0
			   BEQ   a
			   MOVI  R9, #1
			a: ADDI  R1, R1, #1
			   BEQ   b
			   MOVI  R9, #1
			b: ADDI  R1, R1, #1
			   BEQ   c
			   MOVI  R9, #1
			c: ADDI  R1, R1, #1
			   SUBIS R2, R0, #1
			   BLT   R0, d
			   MOVI  R9, #1
			d:
		`,
		Expected: map[uint8]uint32{1: 3, 2: 0xFFFFFFFF, 9: 0},
	}
}

// 6. Mixed Operations - Exercises every ALU operation class
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "mix of multiply, divide, logic and shift operations",
		Source: `
			MOVI R1, #6
			MOVI R2, #7
			MUL  R3, R1, R2
			SUBI R4, R3, #2
			DIVI R5, R4, #3
			MODI R6, R4, #3
			ANDI R7, R3, #15
			ORI  R8, R7, #1
			XOR  R9, R8, R2
			MOV  R10, R5
			SHL  R10, #2
			SHR  R10, #1
		`,
		Expected: map[uint8]uint32{
			3: 42, 4: 40, 5: 13, 6: 1, 7: 10, 8: 11, 9: 12, 10: 26,
		},
	}
}

// 7. Matrix Multiply 2x2 - Loads, multiplies and stores a small matrix
func matrixMultiply2x2() Benchmark {
	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "2x2 integer matrix multiply - C = A * B",
		Source: `
			MOVI R1, #256
			LOAD R2, [R1]
			LOAD R3, [R1, #1]
			LOAD R4, [R1, #2]
			LOAD R5, [R1, #3]
			LOAD R6, [R1, #4]
			LOAD R7, [R1, #5]
			LOAD R8, [R1, #6]
			LOAD R9, [R1, #7]
			MUL  R11, R2, R6
			MUL  R15, R3, R8
			ADD  R11, R11, R15
			MUL  R12, R2, R7
			MUL  R15, R3, R9
			ADD  R12, R12, R15
			MUL  R13, R4, R6
			MUL  R15, R5, R8
			ADD  R13, R13, R15
			MUL  R14, R4, R7
			MUL  R15, R5, R9
			ADD  R14, R14, R15
			STR  R11, [R1, #8]
			STR  R12, [R1, #9]
			STR  R13, [R1, #10]
			STR  R14, [R1, #11]
		`,
		Setup:    pokeAll(256, 1, 2, 3, 4, 5, 6, 7, 8),
		Expected: map[uint8]uint32{11: 19, 12: 22, 13: 43, 14: 50},
	}
}

// 8. Loop - Countdown loop closed by a register jump
func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop",
		Description: "10 iteration countdown loop - measures branch and flag handling",
		Source: `
			      MOVI  R1, #10
			      MOVI  R2, #0
			      MOVI  R3, loop
			loop: ADDI  R2, R2, #2
			      SUBIS R1, R1, #1
			      BEQ   done
			      JMP   R3
			done:
		`,
		Expected: map[uint8]uint32{1: 0, 2: 20},
	}
}

// 9. Cache Conflict - Two addresses that map to the same line
func cacheConflict() Benchmark {
	return Benchmark{
		Name:        "cache_conflict",
		Description: "alternating accesses to conflicting lines plus a FLUSH",
		Source: `
			MOVI  R1, #2048
			MOVI  R2, #2304
			MOVI  R3, #4
			STR   R3, [R1]
			MOVI  R4, #6
			STR   R4, [R2]
			LOAD  R5, [R1]
			LOAD  R6, [R2]
			ADD   R7, R5, R6
			FLUSH R1
			LOAD  R8, [R1]
		`,
		Expected: map[uint8]uint32{7: 10, 8: 4},
	}
}
